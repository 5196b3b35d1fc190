// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names for the core domain events.  Consumers (notifications,
// analytics, achievements) subscribe independently and can never block
// or fail the operation that emitted the event.
const (
    HabitCompletedQueue  = "habit.completed"
    ForgivenessUsedQueue = "forgiveness.used"
    XPGainedQueue        = "xp.gained"
    LevelUpQueue         = "level.up"
)

// HabitCompletedEvent is published after a completion commits.  It
// carries the resulting streak state so downstream consumers can
// notify or chart without querying the primary database.
type HabitCompletedEvent struct {
    CompletionID  uint64 `json:"completion_id"`
    HabitID       uint64 `json:"habit_id"`
    UserID        uint64 `json:"user_id"`
    CompletedOn   string `json:"completed_on"`
    XPEarned      int64  `json:"xp_earned"`
    CurrentStreak int    `json:"current_streak"`
    LongestStreak int    `json:"longest_streak"`
    CompletedAt   string `json:"completed_at"`
}

// ForgivenessUsedEvent is published after a token spend commits.
// AbuseFlagged carries the advisory scan result for monitoring.
type ForgivenessUsedEvent struct {
    CompletionID    uint64 `json:"completion_id"`
    HabitID         uint64 `json:"habit_id"`
    UserID          uint64 `json:"user_id"`
    ForgivenOn      string `json:"forgiven_on"`
    DaysLate        int    `json:"days_late"`
    RemainingTokens int    `json:"remaining_tokens"`
    AbuseFlagged    bool   `json:"abuse_flagged"`
    GrantedAt       string `json:"granted_at"`
}

// XPGainedEvent is published once per committed operation that awarded
// XP, with the post-commit totals.
type XPGainedEvent struct {
    UserID   uint64 `json:"user_id"`
    Amount   int64  `json:"amount"`
    Source   string `json:"source"`
    TotalXP  int64  `json:"total_xp"`
    Level    int    `json:"level"`
    GainedAt string `json:"gained_at"`
}

// LevelUpEvent is published when an XP award pushed the user past a
// level threshold.
type LevelUpEvent struct {
    UserID    uint64 `json:"user_id"`
    OldLevel  int    `json:"old_level"`
    NewLevel  int    `json:"new_level"`
    TotalXP   int64  `json:"total_xp"`
    LeveledAt string `json:"leveled_at"`
}
