package model

import "time"

// Frequency values accepted in habits.frequency.  Custom habits carry a
// weekday set in habits.days_of_week.
const (
    FrequencyDaily  = "DAILY"
    FrequencyWeekly = "WEEKLY"
    FrequencyCustom = "CUSTOM"
)

// Habit represents a habit owned by a single user as stored in the
// `habits` table.  The streak and consistency fields are derived
// caches: they must always equal what a fresh recomputation over the
// habit's completion history would produce, and the bulk recalculate
// endpoint exists to repair them if they ever drift.
//
// Fields:
//  ID              – primary key identifier.
//  UserID          – owner of the habit.
//  Name            – display name.
//  Frequency       – DAILY, WEEKLY or CUSTOM.
//  DaysOfWeek      – comma separated weekday numbers (0=Sunday .. 6=Saturday)
//                    when Frequency is CUSTOM; empty otherwise.
//  IsActive        – false once archived; archived habits accept no
//                    new completions.
//  CurrentStreak   – derived: consecutive expected occurrences completed,
//                    counting back from today.
//  LongestStreak   – derived: maximum streak over the full history.
//  TotalCompletions – derived: number of completion rows.
//  ConsistencyRate – derived: completions / expected occurrences over the
//                    lookback window, as an integer percentage.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Habit struct {
    ID               uint64    // habits.id
    UserID           uint64    // habits.user_id
    Name             string    // habits.name
    Frequency        string    // habits.frequency
    DaysOfWeek       string    // habits.days_of_week (nullable in DB, "" here)
    IsActive         bool      // habits.is_active
    CurrentStreak    int       // habits.current_streak (derived cache)
    LongestStreak    int       // habits.longest_streak (derived cache)
    TotalCompletions int       // habits.total_completions (derived cache)
    ConsistencyRate  int       // habits.consistency_rate (derived cache)
    CreatedAt        time.Time // habits.created_at
    UpdatedAt        time.Time // habits.updated_at
}
