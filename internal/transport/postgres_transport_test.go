package transport

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rowsync-core/internal/core/storage/postgres"
)

func TestPostgresLoader_Query(t *testing.T) {
	l := NewPostgresLoader(nil, "")
	assert.Equal(t, `SELECT row_to_json(t) FROM "posts" AS t ORDER BY t."id" DESC`, l.Query("posts"))

	l = NewPostgresLoader(nil, "created_at")
	assert.Equal(t, `SELECT row_to_json(t) FROM "weird""name" AS t ORDER BY t."created_at" DESC`, l.Query(`weird"name`))
}

func testPostgres(t *testing.T) *postgres.Storage {
	t.Helper()
	dsn := os.Getenv("ROWSYNC_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("ROWSYNC_TEST_PG_DSN not set")
	}
	db, err := postgres.New(context.Background(), &postgres.Config{DSN: dsn, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPostgresTransport_ListenNotify(t *testing.T) {
	db := testPostgres(t)
	ctx := context.Background()

	tr := NewPostgresTransport(db, Options{SubscribeTimeout: 5 * time.Second}, nil)
	ch, err := tr.Subscribe(ctx, "rowsync_test_posts")
	require.NoError(t, err)
	defer ch.Close()
	assert.Equal(t, StatusSubscribed, next(t, ch).Status)

	require.NoError(t, db.Exec(ctx, `SELECT pg_notify('rowsync_test_posts', '{"type":"INSERT","record":{"id":5}}')`))

	d := next(t, ch)
	require.NoError(t, d.Err)
	assert.Equal(t, "INSERT", d.Record.Type)

	require.NoError(t, ch.Close())
	waitClosed(t, ch)
}

func TestPostgresLoader_Load(t *testing.T) {
	db := testPostgres(t)
	ctx := context.Background()

	require.NoError(t, db.Exec(ctx, `DROP TABLE IF EXISTS rowsync_test_load`))
	require.NoError(t, db.Exec(ctx, `CREATE TABLE rowsync_test_load (id bigint PRIMARY KEY, text text)`))
	t.Cleanup(func() { db.Exec(context.Background(), `DROP TABLE IF EXISTS rowsync_test_load`) })
	require.NoError(t, db.Exec(ctx, `INSERT INTO rowsync_test_load VALUES (1, 'a'), (2, 'b')`))

	rows, err := NewPostgresLoader(db, "id").Load(ctx, "rowsync_test_load")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[0]["id"])
	assert.Equal(t, "a", rows[1]["text"])
}
