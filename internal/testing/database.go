package testing

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/teranos/punchclock/db"
)

// CreateTestDB creates an in-memory SQLite database with the given schema migrated.
// Automatically registers cleanup via t.Cleanup().
func CreateTestDB(t *testing.T, schema db.Schema) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	// Each pooled connection to :memory: is a distinct database
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	if err := db.Migrate(conn, schema, nil); err != nil {
		t.Fatalf("Failed to migrate %s schema: %v", schema, err)
	}

	t.Cleanup(func() {
		conn.Close()
	})

	return conn
}
