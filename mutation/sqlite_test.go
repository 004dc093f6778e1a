package mutation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/punchclock/db"
	"github.com/teranos/punchclock/errors"
)

func TestSQLBackend_DriverFailures(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	q := NewQueue(NewSQLBackend(conn), nil)
	ctx := context.Background()

	mock.ExpectQuery("SELECT .* FROM mutation_queue WHERE entity_type").
		WillReturnError(errors.New("disk I/O error"))

	err = q.Enqueue(ctx, EntityJob, "j1", OpUpsert, map[string]string{"id": "j1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")

	mock.ExpectExec("DELETE FROM mutation_queue").
		WithArgs("job", "j1", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err := q.Ack(ctx, []Item{{EntityType: EntityJob, EntityID: "j1", Version: 3}})
	require.NoError(t, err)
	assert.Zero(t, removed, "stale version is not removed")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLBackend_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.db")
	ctx := context.Background()

	conn, err := db.OpenWithMigrations(path, db.SchemaLocal, nil)
	require.NoError(t, err)
	q := NewQueue(NewSQLBackend(conn), nil)
	require.NoError(t, q.Enqueue(ctx, EntityJob, "j1", OpUpsert, map[string]string{"id": "j1"}))
	require.NoError(t, q.Enqueue(ctx, EntityTimeEntry, "e1", OpDelete, map[string]string{"id": "e1"}))
	require.NoError(t, conn.Close())

	conn, err = db.OpenWithMigrations(path, db.SchemaLocal, nil)
	require.NoError(t, err)
	defer conn.Close()

	items, err := NewQueue(NewSQLBackend(conn), nil).Pending(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "j1", items[0].EntityID)
	assert.Equal(t, OpUpsert, items[0].Operation)
	assert.Equal(t, "e1", items[1].EntityID)
	assert.Equal(t, OpDelete, items[1].Operation)
}
