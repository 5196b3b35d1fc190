package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"
)

// CompletionRepo owns the append-only completion ledger.  A composite
// unique index on (habit_id, completed_on) backs the one-per-day
// invariant: the existence check and the insert are the same
// statement, so two simultaneous requests for the same day produce
// exactly one row and one ErrDuplicateCompletion.
type CompletionRepo struct {
    db *sql.DB
}

// NewCompletionRepo returns a new CompletionRepo bound to the given database.
func NewCompletionRepo(db *sql.DB) *CompletionRepo { return &CompletionRepo{db: db} }

// CompletionRecord mirrors the schema of the completions table.
type CompletionRecord struct {
    ID              uint64
    HabitID         uint64
    UserID          uint64
    CompletedOn     string // DATE as "YYYY-MM-DD"
    CreatedAt       time.Time
    XPEarned        int
    ForgivenessUsed bool
    Edited          bool
    DaysLate        int
}

// InsertTx appends a completion row inside the given transaction and
// populates the generated ID.  A duplicate-key violation from the
// (habit_id, completed_on) unique index is translated into
// ErrDuplicateCompletion.
func (r *CompletionRepo) InsertTx(ctx context.Context, tx *sql.Tx, rec *CompletionRecord) error {
    const q = `INSERT INTO completions
        (habit_id, user_id, completed_on, xp_earned, forgiveness_used, edited, days_late)
        VALUES (?,?,?,?,?,?,?)`
    res, err := tx.ExecContext(ctx, q,
        rec.HabitID, rec.UserID, rec.CompletedOn, rec.XPEarned,
        rec.ForgivenessUsed, rec.Edited, rec.DaysLate)
    if err != nil {
        if strings.Contains(strings.ToLower(err.Error()), "1062") {
            return ErrDuplicateCompletion
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    rec.ID = uint64(id)
    const sel = `SELECT created_at FROM completions WHERE id = ?`
    return tx.QueryRowContext(ctx, sel, rec.ID).Scan(&rec.CreatedAt)
}

// DaysByHabitTx returns the completion days of a habit in ascending
// order, read inside the transaction so streak recomputation sees the
// row just inserted.
func (r *CompletionRepo) DaysByHabitTx(ctx context.Context, tx *sql.Tx, habitID uint64) ([]string, error) {
    rows, err := tx.QueryContext(ctx,
        "SELECT DATE_FORMAT(completed_on, '%Y-%m-%d') FROM completions WHERE habit_id=? ORDER BY completed_on ASC",
        habitID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    days := make([]string, 0)
    for rows.Next() {
        var d string
        if err := rows.Scan(&d); err != nil {
            return nil, err
        }
        days = append(days, d)
    }
    return days, rows.Err()
}

// DaysByHabit is DaysByHabitTx outside a transaction, used by the bulk
// recalculate repair path and the integrity auditor.
func (r *CompletionRepo) DaysByHabit(ctx context.Context, habitID uint64) ([]string, error) {
    rows, err := r.db.QueryContext(ctx,
        "SELECT DATE_FORMAT(completed_on, '%Y-%m-%d') FROM completions WHERE habit_id=? ORDER BY completed_on ASC",
        habitID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    days := make([]string, 0)
    for rows.Next() {
        var d string
        if err := rows.Scan(&d); err != nil {
            return nil, err
        }
        days = append(days, d)
    }
    return days, rows.Err()
}

// ListByUser returns all completions for a user, newest first, for the
// integrity auditor's invariant checks.
func (r *CompletionRepo) ListByUser(ctx context.Context, userID uint64) ([]CompletionRecord, error) {
    const q = `SELECT id, habit_id, user_id, DATE_FORMAT(completed_on, '%Y-%m-%d'),
               created_at, xp_earned, forgiveness_used, edited, days_late
               FROM completions WHERE user_id=? ORDER BY completed_on DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    recs := make([]CompletionRecord, 0)
    for rows.Next() {
        var rec CompletionRecord
        if err := rows.Scan(&rec.ID, &rec.HabitID, &rec.UserID, &rec.CompletedOn,
            &rec.CreatedAt, &rec.XPEarned, &rec.ForgivenessUsed, &rec.Edited, &rec.DaysLate); err != nil {
            return nil, err
        }
        recs = append(recs, rec)
    }
    return recs, rows.Err()
}

// RecentForgivenByUser returns the user's most recent forgiveness
// completions (newest first), capped at limit.  The abuse detector
// scans this slice after each grant.
func (r *CompletionRepo) RecentForgivenByUser(ctx context.Context, userID uint64, limit int) ([]string, error) {
    const q = `SELECT DATE_FORMAT(completed_on, '%Y-%m-%d') FROM completions
               WHERE user_id=? AND forgiveness_used=1
               ORDER BY completed_on DESC LIMIT ?`
    rows, err := r.db.QueryContext(ctx, q, userID, limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    days := make([]string, 0, limit)
    for rows.Next() {
        var d string
        if err := rows.Scan(&d); err != nil {
            return nil, err
        }
        days = append(days, d)
    }
    return days, rows.Err()
}

// DeleteByHabitTx removes all completions for a habit as part of the
// delete cascade.  It returns the number of rows removed.
func (r *CompletionRepo) DeleteByHabitTx(ctx context.Context, tx *sql.Tx, habitID uint64) (int64, error) {
    res, err := tx.ExecContext(ctx, "DELETE FROM completions WHERE habit_id=?", habitID)
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}
