package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"
)

// HabitRepo provides CRUD operations for habits and their derived
// aggregate caches.  All timestamp fields are assumed to be stored in
// UTC; the calendar-day fields used for streaks live on the
// completions table, not here.
type HabitRepo struct {
    db *sql.DB
}

// NewHabitRepo returns a new HabitRepo bound to the given database.
func NewHabitRepo(db *sql.DB) *HabitRepo { return &HabitRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions
// spanning several repositories.
func (r *HabitRepo) DB() *sql.DB { return r.db }

// HabitRecord mirrors the schema of the habits table.  It is used by
// the repository when constructing or scanning rows; business logic
// should use the model.Habit type instead.
type HabitRecord struct {
    ID               uint64
    UserID           uint64
    Name             string
    Frequency        string
    DaysOfWeek       string
    IsActive         bool
    CurrentStreak    int
    LongestStreak    int
    TotalCompletions int
    ConsistencyRate  int
    CreatedAt        time.Time
    UpdatedAt        time.Time
}

const habitColumns = `id, user_id, name, frequency, days_of_week, is_active,
current_streak, longest_streak, total_completions, consistency_rate, created_at, updated_at`

func scanHabit(row interface{ Scan(...interface{}) error }) (HabitRecord, error) {
    var h HabitRecord
    var days sql.NullString
    err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.Frequency, &days, &h.IsActive,
        &h.CurrentStreak, &h.LongestStreak, &h.TotalCompletions, &h.ConsistencyRate,
        &h.CreatedAt, &h.UpdatedAt)
    if days.Valid {
        h.DaysOfWeek = days.String
    }
    return h, err
}

// Create inserts a new habit for the given user and populates the
// generated ID on the record.  Frequency must be one of the
// model.Frequency* values; DaysOfWeek is only stored for CUSTOM.
func (r *HabitRepo) Create(ctx context.Context, h *HabitRecord) error {
    var days interface{}
    if strings.TrimSpace(h.DaysOfWeek) != "" {
        days = h.DaysOfWeek
    }
    res, err := r.db.ExecContext(ctx,
        "INSERT INTO habits (user_id, name, frequency, days_of_week, is_active) VALUES (?,?,?,?,1)",
        h.UserID, h.Name, h.Frequency, days)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    h.ID = uint64(id)
    return nil
}

// GetByIDForUser returns a habit owned by the given user.  It returns
// ErrHabitNotFound when no row exists and ErrForbidden when the habit
// belongs to someone else, so handlers can distinguish 404 from 403.
func (r *HabitRepo) GetByIDForUser(ctx context.Context, habitID, userID uint64) (HabitRecord, error) {
    h, err := scanHabit(r.db.QueryRowContext(ctx,
        "SELECT "+habitColumns+" FROM habits WHERE id=? LIMIT 1", habitID))
    if err != nil {
        if err == sql.ErrNoRows {
            return h, ErrHabitNotFound
        }
        return h, err
    }
    if h.UserID != userID {
        return h, ErrForbidden
    }
    return h, nil
}

// GetByIDForUserTx is GetByIDForUser inside a transaction with a row
// lock, so the habit cannot be archived or deleted between the
// eligibility check and the ledger insert.
func (r *HabitRepo) GetByIDForUserTx(ctx context.Context, tx *sql.Tx, habitID, userID uint64) (HabitRecord, error) {
    h, err := scanHabit(tx.QueryRowContext(ctx,
        "SELECT "+habitColumns+" FROM habits WHERE id=? FOR UPDATE", habitID))
    if err != nil {
        if err == sql.ErrNoRows {
            return h, ErrHabitNotFound
        }
        return h, err
    }
    if h.UserID != userID {
        return h, ErrForbidden
    }
    return h, nil
}

// ListByUser returns all habits (active and archived) for a user,
// newest first.  When none exist an empty slice is returned.
func (r *HabitRepo) ListByUser(ctx context.Context, userID uint64) ([]HabitRecord, error) {
    rows, err := r.db.QueryContext(ctx,
        "SELECT "+habitColumns+" FROM habits WHERE user_id=? ORDER BY created_at DESC", userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    habits := make([]HabitRecord, 0)
    for rows.Next() {
        h, err := scanHabit(rows)
        if err != nil {
            return nil, err
        }
        habits = append(habits, h)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return habits, nil
}

// Archive flips is_active off.  Archived habits keep their history and
// aggregates but accept no new completions.
func (r *HabitRepo) Archive(ctx context.Context, habitID, userID uint64) error {
    if _, err := r.GetByIDForUser(ctx, habitID, userID); err != nil {
        return err
    }
    _, err := r.db.ExecContext(ctx,
        "UPDATE habits SET is_active=0 WHERE id=?", habitID)
    return err
}

// UpdateAggregatesTx writes the derived streak/consistency cache for a
// habit inside a transaction.  The values must come from a fresh
// recomputation over the completion history read in the same
// transaction, so a stale recompute can never overwrite a newer one.
func (r *HabitRepo) UpdateAggregatesTx(ctx context.Context, tx *sql.Tx, habitID uint64, current, longest, total, consistency int) error {
    _, err := tx.ExecContext(ctx,
        `UPDATE habits SET current_streak=?, longest_streak=?, total_completions=?, consistency_rate=? WHERE id=?`,
        current, longest, total, consistency, habitID)
    return err
}

// DeleteTx removes the habit row.  Completions must already have been
// removed (and refunded) in the same transaction by the caller.
func (r *HabitRepo) DeleteTx(ctx context.Context, tx *sql.Tx, habitID uint64) error {
    _, err := tx.ExecContext(ctx, "DELETE FROM habits WHERE id=?", habitID)
    return err
}
