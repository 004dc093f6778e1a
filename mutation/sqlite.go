package mutation

import (
	"context"
	"database/sql"

	"github.com/teranos/punchclock/errors"
)

// SQLBackend stores items in the local database's mutation_queue table so
// pending writes survive restarts
type SQLBackend struct {
	db *sql.DB
}

// NewSQLBackend creates a backend over a migrated local database
func NewSQLBackend(db *sql.DB) *SQLBackend {
	return &SQLBackend{db: db}
}

const itemColumns = `entity_type, entity_id, operation, payload, enqueued_at, version, attempts, last_error`

func (b *SQLBackend) Get(ctx context.Context, key Key) (*Item, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM mutation_queue WHERE entity_type = ? AND entity_id = ?`,
		string(key.EntityType), key.EntityID)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get queued mutation")
	}
	return it, nil
}

// Put upserts in place, so rowid (and therefore queue order) is preserved
func (b *SQLBackend) Put(ctx context.Context, item Item) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO mutation_queue (`+itemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(entity_type, entity_id) DO UPDATE SET
		   operation = excluded.operation,
		   payload = excluded.payload,
		   version = excluded.version,
		   attempts = excluded.attempts,
		   last_error = excluded.last_error`,
		string(item.EntityType), item.EntityID, string(item.Operation), []byte(item.Payload),
		item.EnqueuedAt, item.Version, item.Attempts, item.LastError)
	if err != nil {
		return errors.Wrap(err, "failed to store mutation")
	}
	return nil
}

func (b *SQLBackend) Remove(ctx context.Context, key Key, version int64) (bool, error) {
	res, err := b.db.ExecContext(ctx,
		`DELETE FROM mutation_queue WHERE entity_type = ? AND entity_id = ? AND version = ?`,
		string(key.EntityType), key.EntityID, version)
	if err != nil {
		return false, errors.Wrap(err, "failed to remove mutation")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read rows affected")
	}
	return n > 0, nil
}

func (b *SQLBackend) List(ctx context.Context) ([]Item, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM mutation_queue ORDER BY rowid`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list mutations")
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan mutation")
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (b *SQLBackend) RecordFailure(ctx context.Context, key Key, message string) error {
	_, err := b.db.ExecContext(ctx,
		`UPDATE mutation_queue SET attempts = attempts + 1, last_error = ? WHERE entity_type = ? AND entity_id = ?`,
		message, string(key.EntityType), key.EntityID)
	if err != nil {
		return errors.Wrap(err, "failed to record mutation failure")
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*Item, error) {
	var it Item
	var et, op string
	var payload []byte
	if err := s.Scan(&et, &it.EntityID, &op, &payload, &it.EnqueuedAt, &it.Version, &it.Attempts, &it.LastError); err != nil {
		return nil, err
	}
	it.EntityType = EntityType(et)
	it.Operation = Operation(op)
	it.Payload = payload
	return &it, nil
}
