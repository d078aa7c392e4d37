// Package entrypoint wires the data layer together: configuration,
// the connection pool, schema migrations and the repositories.
//
// Consumers (renderers, importers, admin surfaces) receive the
// constructed repositories and treat their operations as opaque,
// fallible calls. There is no hidden global pool: one pool is built
// here and injected everywhere.
package entrypoint

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/mrlokans/chronicle/internal/config"
	"github.com/mrlokans/chronicle/internal/database"
	"github.com/mrlokans/chronicle/internal/database/accounts"
	"github.com/mrlokans/chronicle/internal/database/content"
	"github.com/mrlokans/chronicle/internal/database/migrate"
)

// App holds the wired data layer.
type App struct {
	Config   *config.Config
	Pool     *database.Pool
	Content  *content.Repository
	Accounts *accounts.Repository
}

// New loads configuration, opens the pool and brings the schema up to
// date. A migration failure aborts startup; there is no partial-schema
// operating mode.
func New(ctx context.Context) (*App, error) {
	cfg := config.NewConfig()

	pool, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}

	if err := migrate.Run(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	log.WithFields(log.Fields{
		"path":      cfg.Database.Path,
		"pool_size": cfg.Pool.Size,
	}).Info("database ready")

	return &App{
		Config:   cfg,
		Pool:     pool,
		Content:  content.NewRepository(pool),
		Accounts: accounts.NewRepository(pool),
	}, nil
}

// Close releases the pool and logs a final metrics snapshot.
func (a *App) Close() error {
	snapshot := a.Pool.Metrics().Snapshot()
	log.WithFields(log.Fields{
		"acquisitions": snapshot.Acquisitions,
		"timeouts":     snapshot.Timeouts,
		"errors":       snapshot.Errors,
		"max_wait_ms":  snapshot.MaxWaitMs,
		"max_usage_ms": snapshot.MaxUsageMs,
	}).Info("closing database pool")
	return a.Pool.Close()
}

// Run starts the data layer and blocks until SIGINT or SIGTERM.
func Run() error {
	ctx := context.Background()

	app, err := New(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	return nil
}
