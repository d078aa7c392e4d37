package migrate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/chronicle/internal/config"
	"github.com/mrlokans/chronicle/internal/database"
)

func setupTestPool(t *testing.T) *database.Pool {
	t.Helper()
	cfg := &config.Config{
		Database: config.Database{
			Path:        filepath.Join(t.TempDir(), "test.db"),
			BusyTimeout: 5 * time.Second,
		},
		Pool: config.Pool{
			Size:           2,
			AcquireTimeout: 5 * time.Second,
		},
		Metrics: config.Metrics{
			SampleInterval: time.Minute,
			SampleCapacity: 60,
		},
	}
	pool, err := database.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestMigrationIDsStrictlyIncreasing(t *testing.T) {
	require.NotEmpty(t, Migrations)
	for i := 1; i < len(Migrations); i++ {
		assert.Greater(t, Migrations[i].ID, Migrations[i-1].ID)
	}
}

func TestRunCreatesSchema(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()

	require.NoError(t, Run(ctx, pool))

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	for _, table := range []string{"entries", "tags", "entry_tags", "entry_metadata", "accounts", "schema_migrations"} {
		var name string
		err := conn.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		assert.NoError(t, err, "table %s should exist", table)
	}
}

func TestRunRecordsEveryMigration(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()

	require.NoError(t, Run(ctx, pool))

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	var count int
	require.NoError(t, conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, len(Migrations), count)

	version, err := Version(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, Migrations[len(Migrations)-1].ID, version)
}

func TestRunIsIdempotent(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()

	require.NoError(t, Run(ctx, pool))
	require.NoError(t, Run(ctx, pool), "second run must be a no-op")

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	var count int
	require.NoError(t, conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, len(Migrations), count, "no duplicate application records")
}

func TestVersionOnFreshDatabase(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()

	// Only ensure the bookkeeping table, apply nothing.
	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	conn.Release()
	require.NoError(t, err)

	version, err := Version(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)
}
