package database

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// maxTxAttempts bounds how often a transaction is re-run after a
// transient failure before the error surfaces to the caller.
const maxTxAttempts = 3

// WithTx runs fn inside a transaction, committing on success and
// rolling back on any error.  Lock timeouts and deadlocks (MySQL 1205
// and 1213) are retried with a short backoff by re-running the whole
// function, never by replaying a partial insert: each attempt repeats
// the full check-and-insert sequence, so a retry can still end in
// ErrDuplicateCompletion instead of a double credit.
func WithTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = runOnce(ctx, db, fn)
		if err == nil || !IsTransient(err) {
			return err
		}
		select {
		case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func runOnce(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// IsTransient reports whether err is a retriable storage failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1205") || // lock wait timeout
		strings.Contains(msg, "1213") || // deadlock
		strings.Contains(msg, "try restarting transaction")
}
