package repository

import (
    "context"
    "database/sql"
    "time"
)

// ForgivenessRepo records authorized token spends.  Grant rows are
// written in the same transaction as the token decrement and the
// forgiven completion, so the daily-cap count is exact for every
// subsequent request, including concurrent ones.
type ForgivenessRepo struct {
    db *sql.DB
}

// NewForgivenessRepo returns a new ForgivenessRepo bound to the given database.
func NewForgivenessRepo(db *sql.DB) *ForgivenessRepo { return &ForgivenessRepo{db: db} }

// InsertGrantTx records an authorized spend inside the transaction.
func (r *ForgivenessRepo) InsertGrantTx(ctx context.Context, tx *sql.Tx, userID, habitID uint64, forgivenOn string) error {
    _, err := tx.ExecContext(ctx,
        "INSERT INTO forgiveness_grants (user_id, habit_id, forgiven_on) VALUES (?,?,?)",
        userID, habitID, forgivenOn)
    return err
}

// CountSinceTx counts grants issued to a user at or after the given
// instant (local midnight of the request's timezone, converted to
// UTC).  The cap is global per user across all habits.
func (r *ForgivenessRepo) CountSinceTx(ctx context.Context, tx *sql.Tx, userID uint64, since time.Time) (int, error) {
    var n int
    err := tx.QueryRowContext(ctx,
        "SELECT COUNT(*) FROM forgiveness_grants WHERE user_id=? AND granted_at >= ?",
        userID, since.UTC()).Scan(&n)
    return n, err
}
