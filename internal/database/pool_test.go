package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/chronicle/internal/config"
	"github.com/mrlokans/chronicle/internal/database/dberr"
)

func testConfig(t *testing.T, size int, acquireTimeout time.Duration) *config.Config {
	t.Helper()
	return &config.Config{
		Database: config.Database{
			Path:        filepath.Join(t.TempDir(), "test.db"),
			BusyTimeout: 5 * time.Second,
		},
		Pool: config.Pool{
			Size:           size,
			AcquireTimeout: acquireTimeout,
		},
		Metrics: config.Metrics{
			SampleInterval: time.Minute,
			SampleCapacity: 60,
		},
	}
}

func setupTestPool(t *testing.T) *Pool {
	t.Helper()
	pool, err := Open(testConfig(t, 4, 5*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestPoolAcquireRelease(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)

	var one int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT 1`).Scan(&one))
	assert.Equal(t, 1, one)

	s := pool.Metrics().Snapshot()
	assert.Equal(t, int64(1), s.Active)
	assert.Equal(t, int64(1), s.Acquisitions)
	assert.Equal(t, int64(1), s.Created)

	conn.Release()

	s = pool.Metrics().Snapshot()
	assert.Equal(t, int64(0), s.Active)
	assert.Equal(t, int64(1), s.Idle)
}

func TestPoolReleaseIdempotent(t *testing.T) {
	pool := setupTestPool(t)

	conn, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	conn.Release()
	conn.Release()
	conn.Release()

	s := pool.Metrics().Snapshot()
	assert.Equal(t, int64(0), s.Active)
	assert.Equal(t, int64(1), s.Idle)
}

func TestPoolReusesIdleConnections(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		conn, err := pool.Acquire(ctx)
		require.NoError(t, err)
		conn.Release()
	}

	s := pool.Metrics().Snapshot()
	assert.Equal(t, int64(5), s.Acquisitions)
	assert.Equal(t, int64(1), s.Created, "sequential acquisitions reuse one connection")
}

func TestPoolDiscardsBrokenIdleConnection(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	physical := conn.conn
	conn.Release()

	// Break the pooled connection behind the pool's back.
	require.NoError(t, physical.Close())

	conn, err = pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	var one int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT 1`).Scan(&one))
	assert.Equal(t, 1, one)

	s := pool.Metrics().Snapshot()
	assert.Equal(t, int64(2), s.Created, "dead connection replaced, not reused")
}

func TestPoolAcquireTimeout(t *testing.T) {
	pool, err := Open(testConfig(t, 1, 50*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	ctx := context.Background()

	held, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer held.Release()

	_, err = pool.Acquire(ctx)
	require.Error(t, err)

	kind, ok := dberr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, dberr.Connection, kind)

	s := pool.Metrics().Snapshot()
	assert.Equal(t, int64(1), s.Timeouts)
}

func TestPoolConcurrentAcquire(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return
			}
			defer conn.Release()

			var one int
			_ = conn.QueryRowContext(ctx, `SELECT 1`).Scan(&one)
			time.Sleep(time.Millisecond)
		}()
	}
	wg.Wait()

	s := pool.Metrics().Snapshot()
	assert.Equal(t, int64(0), s.Active)
	assert.Equal(t, int64(20), s.Acquisitions)
	assert.LessOrEqual(t, s.Created, int64(4), "never more physical connections than the pool size")
	assert.GreaterOrEqual(t, s.MaxUsageMs, 1.0)
}

func TestPoolPing(t *testing.T) {
	pool := setupTestPool(t)
	assert.NoError(t, pool.Ping(context.Background()))
}
