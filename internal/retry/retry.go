// Package retry wraps fallible data-layer calls with
// exponential-backoff retries.
//
// Retry policy is caller-side: the repositories never
// retry internally, so each call site decides how many attempts it can
// afford and how patient it is. Lock contention gets a larger backoff
// cap than other failures because a writer queueing behind another
// writer is expected under WAL and usually clears.
package retry

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mrlokans/chronicle/internal/database/dberr"
)

const (
	lockingCap = 10 * time.Second
	defaultCap = 5 * time.Second
	maxJitter  = 500 * time.Millisecond
)

// Do invokes fn, retrying on failure with exponential backoff until it
// succeeds or attempts are exhausted, at which point the last error is
// surfaced unchanged. The delay after each failure is the current
// delay plus up to 500ms of jitter; the delay then doubles, capped at
// 10s for lock-contention failures and 5s for everything else.
func Do[T any](ctx context.Context, attempts int, initialDelay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	delay := initialDelay

	for attempt := 1; ; attempt++ {
		result, err = fn(ctx)
		if err == nil || attempt >= attempts {
			return result, err
		}

		wait := delay + rand.N(maxJitter)
		log.WithFields(log.Fields{
			"attempt": attempt,
			"wait":    wait,
			"error":   err,
		}).Debug("retrying after failure")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return result, err
		}

		delay = min(delay*2, capFor(err))
	}
}

// DoVoid is Do for operations that only return an error.
func DoVoid(ctx context.Context, attempts int, initialDelay time.Duration, fn func(context.Context) error) error {
	_, err := Do(ctx, attempts, initialDelay, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// capFor picks the backoff ceiling from the error's classification,
// falling back to matching the error text when the error did not come
// through the classifier.
func capFor(err error) time.Duration {
	if kind, ok := dberr.KindOf(err); ok {
		if kind == dberr.Locking {
			return lockingCap
		}
		return defaultCap
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "busy") {
		return lockingCap
	}
	return defaultCap
}
