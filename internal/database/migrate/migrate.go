// Package migrate applies the ordered schema migrations for the
// content database.
//
// Migrations are a fixed, compile-time list. Each applied id is
// recorded in schema_migrations and never re-applied. A migration
// script may contain several statements; atomicity across them is not
// guaranteed, so every statement is written to be individually
// idempotent (CREATE TABLE IF NOT EXISTS and the like).
//
// A failed migration is fatal to process startup. There is no
// partial-schema operating mode and migration errors are never retried.
package migrate

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/mrlokans/chronicle/internal/database"
	"github.com/mrlokans/chronicle/internal/database/dberr"
)

// Migration is one versioned schema change. IDs are strictly
// increasing across the Migrations list.
type Migration struct {
	ID     int64
	Name   string
	Script string
}

// Run brings the schema up to date: it reads the highest applied
// migration id (0 when the database is fresh) and applies every
// migration above it, in order, recording each as applied.
func Run(ctx context.Context, pool *database.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`); err != nil {
		return dberr.New(dberr.Migration, "migrate.Run", err)
	}

	var current int64
	if err := conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return dberr.New(dberr.Migration, "migrate.Run", err)
	}

	for _, m := range Migrations {
		if m.ID <= current {
			continue
		}
		if _, err := conn.ExecContext(ctx, m.Script); err != nil {
			return dberr.New(dberr.Migration, "migrate.Run",
				fmt.Errorf("applying migration %d (%s): %w", m.ID, m.Name, err))
		}
		if _, err := conn.ExecContext(ctx,
			`INSERT INTO schema_migrations (id, name) VALUES (?, ?)`,
			m.ID, m.Name,
		); err != nil {
			return dberr.New(dberr.Migration, "migrate.Run",
				fmt.Errorf("recording migration %d (%s): %w", m.ID, m.Name, err))
		}
		log.WithFields(log.Fields{
			"id":   m.ID,
			"name": m.Name,
		}).Info("applied migration")
	}
	return nil
}

// Version returns the highest applied migration id, 0 when none have
// been applied yet.
func Version(ctx context.Context, pool *database.Pool) (int64, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	var current int64
	err = conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) FROM schema_migrations`,
	).Scan(&current)
	if err != nil {
		return 0, dberr.Classify("migrate.Version", err)
	}
	return current, nil
}
