package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/mrlokans/chronicle/internal/config"
	"github.com/mrlokans/chronicle/internal/database/dberr"
)

// Pool is a bounded set of physical connections to one SQLite file.
// It hands out exclusive connection handles and records wait and usage
// durations for every acquisition.
//
// The pool itself never retries: acquisition timeouts and connection
// errors are counted and surfaced to the caller.
type Pool struct {
	db             *sql.DB
	sem            *semaphore.Weighted
	acquireTimeout time.Duration
	metrics        *Metrics

	mu   sync.Mutex
	free []*sql.Conn
}

// Open opens (or creates) the SQLite database at cfg.Database.Path,
// ensures the data directory exists, and configures the engine for
// concurrent access: WAL journal so readers do not block the writer, a
// busy timeout so writers wait for locks instead of failing
// immediately, synchronous=NORMAL (safe under WAL, avoids an fsync per
// transaction), an in-memory temp store, and bounded cache/mmap sizes.
// Foreign keys are enabled so entry deletion cascades to its tag links
// and metadata rows.
func Open(cfg *config.Config) (*Pool, error) {
	dir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?%s", cfg.Database.Path, url.Values{
		"_journal_mode": {"WAL"},
		"_busy_timeout": {fmt.Sprintf("%d", cfg.Database.BusyTimeout.Milliseconds())},
		"_synchronous":  {"NORMAL"},
		"_foreign_keys": {"on"},
	}.Encode())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, dberr.New(dberr.Connection, "pool.open", err)
	}
	if _, err := db.Exec(`
		PRAGMA temp_store = MEMORY;
		PRAGMA cache_size = -8000;
		PRAGMA mmap_size = 268435456;
	`); err != nil {
		db.Close()
		return nil, dberr.New(dberr.Connection, "pool.open", err)
	}

	size := cfg.Pool.Size
	if size < 1 {
		size = 1
	}
	db.SetMaxOpenConns(size)
	db.SetMaxIdleConns(size)

	return &Pool{
		db:             db,
		sem:            semaphore.NewWeighted(int64(size)),
		acquireTimeout: cfg.Pool.AcquireTimeout,
		metrics:        newMetrics(cfg.Metrics),
	}, nil
}

// Acquire blocks until a connection is available or the configured
// acquisition timeout elapses. On success the wait duration is recorded
// and an exclusive handle is returned; the caller must Release it
// (typically via defer) on every exit path.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.metrics.RecordTimeout()
		log.WithFields(log.Fields{
			"timeout": p.acquireTimeout,
			"waited":  time.Since(start),
		}).Warn("connection acquisition timed out")
		return nil, dberr.New(dberr.Connection, "pool.Acquire", err)
	}

	conn, err := p.takeConn(ctx)
	if err != nil {
		p.sem.Release(1)
		p.metrics.RecordError()
		return nil, dberr.New(dberr.Connection, "pool.Acquire", err)
	}

	p.metrics.recordAcquire(time.Since(start))
	return &Conn{pool: p, conn: conn, acquired: time.Now()}, nil
}

// takeConn reuses an idle physical connection or opens a new one. Idle
// connections are pinged before reuse; a dead one is discarded and the
// next candidate (or a fresh connection) is taken instead.
func (p *Pool) takeConn(ctx context.Context) (*sql.Conn, error) {
	for {
		p.mu.Lock()
		n := len(p.free)
		if n == 0 {
			p.mu.Unlock()
			break
		}
		conn := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()

		if err := conn.PingContext(ctx); err == nil {
			return conn, nil
		}
		if conn.Close() == nil {
			p.metrics.recordClosed()
		}
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	p.metrics.recordCreated()
	return conn, nil
}

func (p *Pool) putConn(conn *sql.Conn) {
	p.mu.Lock()
	p.free = append(p.free, conn)
	p.mu.Unlock()
}

// Metrics returns the pool's live instrumentation.
func (p *Pool) Metrics() *Metrics {
	return p.metrics
}

// Ping verifies the database file is reachable.
func (p *Pool) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return dberr.New(dberr.Connection, "pool.Ping", err)
	}
	return nil
}

// Close closes every idle physical connection and the underlying
// database. Handles still held by callers are closed by database/sql
// when released.
func (p *Pool) Close() error {
	p.mu.Lock()
	free := p.free
	p.free = nil
	p.mu.Unlock()

	for _, conn := range free {
		if err := conn.Close(); err == nil {
			p.metrics.recordClosed()
		}
	}
	return p.db.Close()
}

// Conn is a scoped handle on one physical connection. It is owned by a
// single caller between Acquire and Release and must not be shared.
type Conn struct {
	pool     *Pool
	conn     *sql.Conn
	acquired time.Time
	once     sync.Once
}

// Release returns the connection to the pool and records its usage
// duration. It is idempotent, so it is safe to defer immediately after
// a successful Acquire even when an error path releases earlier.
func (c *Conn) Release() {
	c.once.Do(func() {
		c.pool.metrics.recordRelease(time.Since(c.acquired))
		c.pool.putConn(c.conn)
		c.pool.sem.Release(1)
	})
}

// ExecContext executes a statement on the held connection.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.conn.ExecContext(ctx, query, args...)
}

// QueryContext runs a query on the held connection.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query on the held connection.
func (c *Conn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.conn.QueryRowContext(ctx, query, args...)
}

// BeginTx starts a transaction on the held connection.
func (c *Conn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return c.conn.BeginTx(ctx, opts)
}
