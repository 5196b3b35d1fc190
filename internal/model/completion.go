package model

import "time"

// XP amounts credited by the gamification engine.  Forgiveness XP is
// fixed and never receives bonuses.
const (
    CompletionXP      = 10 // base award for a normal completion
    ForgivenessXP     = 5  // fixed award for a forgiven day
    FirstCompletionXP = 25 // one-time bonus for a habit's first completion
    PerfectWeekXP     = 20 // bonus when the last 7 expected days are all done
)

// Completion is one row of the append-only completion ledger, stored
// in the `completions` table.  At most one row may exist per
// (habit_id, completed_on) pair; a composite unique index enforces
// this at the storage layer so that concurrent identical requests
// cannot double-insert.  Rows are immutable after creation and are
// only ever removed as a cascade of habit deletion, which must be
// accompanied by a compensating XP refund.
//
// Fields:
//  ID             – primary key identifier.
//  HabitID        – habit this completion belongs to.
//  UserID         – owner, denormalized for per-user scans.
//  CompletedOn    – the calendar day credited ("YYYY-MM-DD"), computed
//                   in the timezone supplied with the request.
//  CreatedAt      – server receipt instant, immutable.
//  XPEarned       – XP credited by this completion (base only; bonuses
//                   live in their own xp_transactions rows).
//  ForgivenessUsed – true when the row was produced by a token spend.
//  Edited         – true for retroactive rows; always true when
//                   ForgivenessUsed is true.
//  DaysLate       – today minus CompletedOn at grant time; set only
//                   for forgiven rows, 0 otherwise.
type Completion struct {
    ID              uint64    // completions.id
    HabitID         uint64    // completions.habit_id
    UserID          uint64    // completions.user_id
    CompletedOn     string    // completions.completed_on (DATE)
    CreatedAt       time.Time // completions.created_at
    XPEarned        int       // completions.xp_earned
    ForgivenessUsed bool      // completions.forgiveness_used
    Edited          bool      // completions.edited
    DaysLate        int       // completions.days_late
}
