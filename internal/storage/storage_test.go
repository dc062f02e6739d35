package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), "", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate())
	return db
}

func TestMigrateCreatesSchema(t *testing.T) {
	db := openTestDB(t)

	for _, table := range []string{"catalog_items", "identities", "orders", "order_lines", "events"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = $1`, table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}

	// second run is a no-op
	require.NoError(t, db.Migrate())
}

func TestOpenSQLiteFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instance", "doceria.db")

	db, err := Open(context.Background(), "", path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, SQLite, db.Driver)
	require.NoError(t, db.Migrate())
}

func TestWithTxCommits(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO events (aggregate_type, aggregate_id, event_type, payload, created_at) VALUES ('t', '1', 'Created', '{}', $1)`, time.Now().UTC())
		return err
	})
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO events (aggregate_type, aggregate_id, event_type, payload, created_at) VALUES ('t', '1', 'Created', '{}', $1)`, time.Now().UTC()); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n))
	assert.Zero(t, n)
}

func TestIsUniqueViolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insert := func() error {
		_, err := db.ExecContext(ctx, `INSERT INTO identities (handle, credential_hash, role, created_at) VALUES ('ana', 'x', 'customer', $1)`, now)
		return err
	}
	require.NoError(t, insert())

	err := insert()
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("duplicate key")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestCheckConstraintIsNotUniqueViolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `INSERT INTO identities (handle, credential_hash, role, created_at) VALUES ('ana', 'x', 'root', $1)`, time.Now().UTC())
	require.Error(t, err)
	assert.False(t, IsUniqueViolation(err))
}

func TestNegativeAmountsAreRejected(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := db.ExecContext(ctx, `INSERT INTO catalog_items (name, unit_price, created_at, updated_at) VALUES ('Brigadeiro', '-0.01', $1, $1)`, now)
	require.Error(t, err)
	assert.False(t, IsUniqueViolation(err))

	_, err = db.ExecContext(ctx, `INSERT INTO orders (total, created_at) VALUES ('-5.00', $1)`, now)
	require.Error(t, err)

	res, err := db.ExecContext(ctx, `INSERT INTO orders (total, created_at) VALUES ('5.00', $1)`, now)
	require.NoError(t, err)
	orderID, err := res.LastInsertId()
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO order_lines (order_id, item_name, quantity, unit_price) VALUES ($1, 'Brigadeiro', 1, '-2.50')`, orderID)
	require.Error(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO order_lines (order_id, item_name, quantity, unit_price) VALUES ($1, 'Brigadeiro', 1, '0')`, orderID)
	assert.NoError(t, err)
}
