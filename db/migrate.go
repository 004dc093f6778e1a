package db

import (
	"database/sql"
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/punchclock/errors"
)

//go:embed sqlite/migrations/local/*.sql sqlite/migrations/remote/*.sql
var migrations embed.FS

// Schema selects a migration set
type Schema string

const (
	// SchemaLocal is the device database: entities plus the mutation queue
	SchemaLocal Schema = "local"
	// SchemaRemote is the remote authority: user-scoped entities, users and sessions
	SchemaRemote Schema = "remote"
)

// bootstrapVersion creates schema_migrations itself
const bootstrapVersion = "000"

type migration struct {
	version string
	name    string
	sql     string
}

// load returns the schema's migrations ordered by file name. The version is
// the file name's numeric prefix, e.g. "002" for 002_create_time_entries.sql.
func (s Schema) load() ([]migration, error) {
	dir := path.Join("sqlite/migrations", string(s))
	files, err := fs.Glob(migrations, dir+"/*.sql")
	if err != nil || len(files) == 0 {
		return nil, errors.Newf("no migrations for schema %q", s)
	}
	sort.Strings(files)

	out := make([]migration, 0, len(files))
	for _, f := range files {
		body, err := migrations.ReadFile(f)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", f)
		}
		name := path.Base(f)
		version, _, _ := strings.Cut(name, "_")
		out = append(out, migration{version: version, name: name, sql: string(body)})
	}
	if out[0].version != bootstrapVersion {
		return nil, errors.Newf("schema %q must start with migration %s", s, bootstrapVersion)
	}
	return out, nil
}

// appliedVersions reads schema_migrations; a missing table means a fresh database
func appliedVersions(db *sql.DB) (map[string]bool, error) {
	var exists int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'`).Scan(&exists)
	if err != nil {
		return nil, errors.Wrap(err, "inspect schema")
	}
	applied := make(map[string]bool)
	if exists == 0 {
		return applied, nil
	}

	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, errors.Wrap(err, "read schema_migrations")
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "scan schema_migrations")
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// Migrate applies the schema's pending migrations, each in its own
// transaction together with its schema_migrations row. Running it again is
// a no-op. If logger is nil, operates silently.
func Migrate(db *sql.DB, schema Schema, logger *zap.SugaredLogger) error {
	all, err := schema.load()
	if err != nil {
		return err
	}
	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	count := 0
	for _, m := range all {
		if applied[m.version] {
			continue
		}
		if logger != nil {
			logger.Infow("Applying migration", "schema", string(schema), "migration", m.name)
		}
		if err := apply(db, m); err != nil {
			return err
		}
		count++
	}

	if logger != nil && count > 0 {
		logger.Infow("Migrations complete", "schema", string(schema), "applied", count, "total", len(all))
	}
	return nil
}

func apply(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrapf(err, "begin %s", m.name)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.sql); err != nil {
		return errors.Wrapf(err, "execute %s", m.name)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
		return errors.Wrapf(err, "record %s", m.name)
	}
	return errors.Wrapf(tx.Commit(), "commit %s", m.name)
}
