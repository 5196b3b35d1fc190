package model

import "time"

// XP transaction sources.  Bonuses are recorded as separate rows with
// their own source rather than folded into one opaque amount, so the
// user's total is always reconstructible from the ledger alone.
const (
    XPSourceHabitCompletion = "habit_completion"
    XPSourceForgiveness     = "forgiveness"
    XPSourceStreakBonus     = "streak_bonus"
    XPSourceFirstCompletion = "first_completion"
    XPSourcePerfectWeek     = "perfect_week"
    XPSourceLevelBonus      = "level_bonus"
    XPSourceRefund          = "refund"
)

// XPTransaction is one row of the append-only XP ledger stored in the
// `xp_transactions` table.  Amounts are signed: refunds emitted when a
// habit is deleted carry a negative amount so that the sum over the
// ledger always equals users.total_xp.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – user credited or debited.
//  HabitID   – habit the transaction relates to (nullable; refunds and
//              level bonuses may not reference one).
//  Amount    – signed XP delta.
//  Source    – one of the XPSource* constants.
//  CreatedAt – creation timestamp.
type XPTransaction struct {
    ID        uint64    // xp_transactions.id
    UserID    uint64    // xp_transactions.user_id
    HabitID   *uint64   // xp_transactions.habit_id (nullable)
    Amount    int64     // xp_transactions.amount
    Source    string    // xp_transactions.source
    CreatedAt time.Time // xp_transactions.created_at
}
