// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection pool over a single SQLite file
//	├── metrics.go       # Pool health counters, histograms, time series
//	├── dberr/           # Semantic error classification
//	├── migrate/         # Ordered, idempotent schema migrations
//	├── content/         # Entry, tag and metadata operations
//	└── accounts/        # Account CRUD and authentication
//
// # Using Sub-packages
//
// Open one pool per process and inject it into the repositories:
//
//	pool, err := database.Open(cfg)
//	if err != nil { ... }
//	defer pool.Close()
//
//	if err := migrate.Run(ctx, pool); err != nil { ... }
//
//	contentRepo := content.NewRepository(pool)
//	accountsRepo := accounts.NewRepository(pool)
//
// # Concurrency
//
// The pool is the single shared mutable resource. A connection handle
// returned by Acquire is owned exclusively by the caller until Release.
// The database file runs in WAL mode: many concurrent readers, one
// writer. Writer/writer contention surfaces as Locking errors, which
// callers retry through the retry package.
package database
