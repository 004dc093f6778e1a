package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/mutation"
)

// Store persists pushed entities as JSON documents owned by a user
type Store struct {
	db *sql.DB
}

// NewStore wraps a database migrated with db.SchemaRemote
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

type table struct {
	name     string
	hasJobID bool
}

var tables = map[mutation.EntityType]table{
	mutation.EntityJob:       {name: "jobs"},
	mutation.EntityTimeEntry: {name: "time_entries", hasJobID: true},
	mutation.EntityPayPeriod: {name: "pay_periods", hasJobID: true},
}

// header is the part of every entity the store indexes on
type header struct {
	ID        string `json:"id"`
	JobID     string `json:"job_id"`
	UpdatedAt int64  `json:"updated_at"`
}

func lookup(et mutation.EntityType) (table, error) {
	t, ok := tables[et]
	if !ok {
		return table{}, errors.NewValidationError("unknown entity type %q", et)
	}
	return t, nil
}

func decodeHeaders(t table, items []json.RawMessage) ([]header, error) {
	out := make([]header, len(items))
	for i, raw := range items {
		if err := json.Unmarshal(raw, &out[i]); err != nil {
			return nil, errors.Wrap(errors.Mark(err, errors.ErrValidation), fmt.Sprintf("item %d of %s", i, t.name))
		}
		if out[i].ID == "" {
			return nil, errors.NewValidationError("item %d of %s has no id", i, t.name)
		}
		if t.hasJobID && out[i].JobID == "" {
			return nil, errors.NewValidationError("%s item %s has no job_id", t.name, out[i].ID)
		}
	}
	return out, nil
}

// Apply runs one push batch for userID in a single transaction and returns
// how many rows changed. Upserts never touch a row owned by another user and
// deletes only remove the caller's rows, so replaying a batch is harmless.
func (s *Store) Apply(ctx context.Context, userID string, et mutation.EntityType, op mutation.Operation, items []json.RawMessage) (int, error) {
	if userID == "" {
		return 0, errors.NewAuthError("no user")
	}
	t, err := lookup(et)
	if err != nil {
		return 0, err
	}
	if !op.Valid() {
		return 0, errors.NewValidationError("unknown operation %q", op)
	}
	headers, err := decodeHeaders(t, items)
	if err != nil {
		return 0, err
	}
	if len(headers) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, statementFor(t, op))
	if err != nil {
		return 0, errors.Wrapf(err, "failed to prepare %s %s", op, t.name)
	}
	defer stmt.Close()

	changed := 0
	for i, h := range headers {
		var res sql.Result
		switch {
		case op == mutation.OpDelete:
			res, err = stmt.ExecContext(ctx, h.ID, userID)
		case t.hasJobID:
			res, err = stmt.ExecContext(ctx, h.ID, userID, h.JobID, string(items[i]), h.UpdatedAt)
		default:
			res, err = stmt.ExecContext(ctx, h.ID, userID, string(items[i]), h.UpdatedAt)
		}
		if err != nil {
			return 0, errors.Wrapf(err, "failed to %s %s %s", op, t.name, h.ID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, errors.Wrap(err, "failed to read rows affected")
		}
		changed += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit")
	}
	return changed, nil
}

func statementFor(t table, op mutation.Operation) string {
	if op == mutation.OpDelete {
		return fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND user_id = ?`, t.name)
	}
	if t.hasJobID {
		return fmt.Sprintf(`INSERT INTO %[1]s (id, user_id, job_id, data, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET job_id = excluded.job_id, data = excluded.data, updated_at = excluded.updated_at
			WHERE %[1]s.user_id = excluded.user_id`, t.name)
	}
	return fmt.Sprintf(`INSERT INTO %[1]s (id, user_id, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
		WHERE %[1]s.user_id = excluded.user_id`, t.name)
}

// List returns every document of the given type owned by userID
func (s *Store) List(ctx context.Context, userID string, et mutation.EntityType) ([]json.RawMessage, error) {
	t, err := lookup(et)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE user_id = ? ORDER BY updated_at, id`, t.name), userID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", t.name)
	}
	defer rows.Close()

	out := []json.RawMessage{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errors.Wrapf(err, "failed to scan %s", t.name)
		}
		out = append(out, json.RawMessage(data))
	}
	return out, errors.Wrap(rows.Err(), "row iteration")
}

// Owner returns the user owning the row, or "" when it does not exist
func (s *Store) Owner(ctx context.Context, et mutation.EntityType, id string) (string, error) {
	t, err := lookup(et)
	if err != nil {
		return "", err
	}
	var owner string
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT user_id FROM %s WHERE id = ?`, t.name), id).Scan(&owner)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to look up %s %s", t.name, id)
	}
	return owner, nil
}
