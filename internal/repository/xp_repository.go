package repository

import (
    "context"
    "database/sql"
)

// XPRepo owns the append-only xp_transactions ledger.  users.total_xp
// is only a cache of SUM(amount) over this table; the auditor and the
// tests hold the service to that.
type XPRepo struct {
    db *sql.DB
}

// NewXPRepo returns a new XPRepo bound to the given database.
func NewXPRepo(db *sql.DB) *XPRepo { return &XPRepo{db: db} }

// XPRecord mirrors the xp_transactions table.  HabitID is nil for
// rows that do not reference a habit.
type XPRecord struct {
    UserID  uint64
    HabitID *uint64
    Amount  int64
    Source  string
}

// InsertTx appends one ledger row inside the given transaction.
func (r *XPRepo) InsertTx(ctx context.Context, tx *sql.Tx, rec XPRecord) error {
    var habitID interface{}
    if rec.HabitID != nil {
        habitID = *rec.HabitID
    }
    _, err := tx.ExecContext(ctx,
        "INSERT INTO xp_transactions (user_id, habit_id, amount, source) VALUES (?,?,?,?)",
        rec.UserID, habitID, rec.Amount, rec.Source)
    return err
}

// InsertAllTx appends several ledger rows in order.  A completion's
// base award and its bonuses are distinct rows with distinct sources,
// never folded into one amount.
func (r *XPRepo) InsertAllTx(ctx context.Context, tx *sql.Tx, recs []XPRecord) error {
    for _, rec := range recs {
        if err := r.InsertTx(ctx, tx, rec); err != nil {
            return err
        }
    }
    return nil
}

// SumByUser returns the authoritative total over the ledger.
func (r *XPRepo) SumByUser(ctx context.Context, userID uint64) (int64, error) {
    var sum sql.NullInt64
    err := r.db.QueryRowContext(ctx,
        "SELECT SUM(amount) FROM xp_transactions WHERE user_id=?", userID).Scan(&sum)
    if err != nil {
        return 0, err
    }
    return sum.Int64, nil
}

// SumByHabitTx returns the summed XP contributed by a habit (base
// awards, forgiveness awards and bonuses; prior refunds excluded).
// The delete cascade emits a refund row of exactly this negated
// amount, so the ledger still sums to the cached total afterwards.
func (r *XPRepo) SumByHabitTx(ctx context.Context, tx *sql.Tx, habitID uint64) (int64, error) {
    var sum sql.NullInt64
    err := tx.QueryRowContext(ctx,
        "SELECT SUM(amount) FROM xp_transactions WHERE habit_id=? AND source<>?",
        habitID, "refund").Scan(&sum)
    if err != nil {
        return 0, err
    }
    return sum.Int64, nil
}
