package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate(t *testing.T) {
	schemas := []struct {
		schema Schema
		tables []string
	}{
		{SchemaLocal, []string{"jobs", "time_entries", "pay_periods", "mutation_queue"}},
		{SchemaRemote, []string{"users", "sessions", "jobs", "time_entries", "pay_periods"}},
	}

	for _, tt := range schemas {
		t.Run(string(tt.schema), func(t *testing.T) {
			db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
			require.NoError(t, err)
			defer db.Close()

			require.NoError(t, Migrate(db, tt.schema, nil))

			for _, table := range tt.tables {
				var n int
				err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n)
				require.NoError(t, err)
				assert.Equal(t, 1, n, "table %s should exist", table)
			}

			// Running again applies nothing new
			require.NoError(t, Migrate(db, tt.schema, nil), "running migrations multiple times should be safe")

			var versions int
			require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&versions))
			assert.Greater(t, versions, 1)
		})
	}
}

func TestMigrate_ClosedDatabase(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	db.Close()

	assert.Error(t, Migrate(db, SchemaLocal, nil))
}

func TestMigrate_MutationQueueConstraints(t *testing.T) {
	db, err := OpenWithMigrations(filepath.Join(t.TempDir(), "test.db"), SchemaLocal, nil)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`INSERT INTO mutation_queue (entity_type, entity_id, operation, enqueued_at) VALUES ('job', 'j1', 'upsert', 1)`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO mutation_queue (entity_type, entity_id, operation, enqueued_at) VALUES ('job', 'j1', 'upsert', 2)`)
	assert.Error(t, err, "one row per entity")

	_, err = db.Exec(`INSERT INTO mutation_queue (entity_type, entity_id, operation, enqueued_at) VALUES ('invoice', 'i1', 'upsert', 1)`)
	assert.Error(t, err, "unknown entity type rejected")
}
