// Package dberr maps low-level SQLite driver failures to the semantic
// error taxonomy used across the data layer.
//
// Classify is the single place raw driver errors are interpreted; every
// repository method returns a classified *Error and no other package
// inspects sqlite3 error codes directly.
package dberr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Kind is the semantic category of a data-layer failure.
type Kind int

const (
	// Connection means the pool or driver could not hand out a usable
	// connection (acquisition timeout included).
	Connection Kind = iota
	// Query means a statement was malformed or failed to execute.
	Query
	// Transaction means a commit or rollback failed for a reason other
	// than lock contention.
	Transaction
	// Migration means a schema migration failed. Fatal at startup,
	// never retried.
	Migration
	// Data means the caller violated a precondition, e.g. updating an
	// entry that has no identity yet.
	Data
	// Locking means the database file was busy or locked. This is the
	// only kind callers are expected to retry.
	Locking
	// NotFound means a single-row query returned no row. Lookup
	// operations represent this as an absent result, not a failure.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Connection:
		return "connection"
	case Query:
		return "query"
	case Transaction:
		return "transaction"
	case Migration:
		return "migration"
	case Data:
		return "data"
	case Locking:
		return "locking"
	case NotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// Error is a classified data-layer failure. Op names the operation that
// failed, e.g. "content.Save".
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with an explicit kind, for call sites that already know
// the classification (commit failures, migration failures, violated
// preconditions).
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Classify wraps a raw driver error with its semantic kind:
//
//   - SQLITE_BUSY / SQLITE_LOCKED (any extended code) -> Locking
//   - sql.ErrNoRows -> NotFound
//   - context deadline or cancellation -> Connection
//   - anything else -> Query
func Classify(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return already
	}
	if errors.Is(err, sql.ErrNoRows) {
		return New(NotFound, op, err)
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		if se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked {
			return New(Locking, op, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return New(Connection, op, err)
	}
	return New(Query, op, err)
}

// KindOf returns the kind of a classified error. ok is false when the
// error did not originate in the data layer.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsLocking reports whether err is classified as lock contention.
func IsLocking(err error) bool {
	k, ok := KindOf(err)
	return ok && k == Locking
}

// IsNotFound reports whether err is classified as a missing row.
func IsNotFound(err error) bool {
	k, ok := KindOf(err)
	return ok && k == NotFound
}
