// Package gamification computes XP awards and the level curve.  The
// level is a pure function of total XP: thresholds are strictly
// increasing and nothing here is stored as authoritative state.
package gamification

import (
    "github.com/iliyamo/habit-streak-service/internal/model"
)

// Streak lengths at which completion streak bonuses kick in.  A longer
// streak replaces the smaller bonus, it does not stack.
const (
    streakBonusMinor    = 7
    streakBonusMajor    = 30
    streakBonusMinorXP  = 5
    streakBonusMajorXP  = 10
)

// Award is one XP ledger entry to append for an event.  Bonuses are
// separate awards with their own source so the ledger stays exactly
// reconstructible.
type Award struct {
    Amount int64
    Source string
}

// CompletionAwards returns the ledger entries for a normal completion:
// the base award plus any streak, first-completion and perfect-week
// bonuses.  streak is the current streak including the completion
// being recorded.
func CompletionAwards(firstEver bool, streak int, perfectWeek bool) []Award {
    awards := []Award{{Amount: model.CompletionXP, Source: model.XPSourceHabitCompletion}}
    switch {
    case streak >= streakBonusMajor:
        awards = append(awards, Award{Amount: streakBonusMajorXP, Source: model.XPSourceStreakBonus})
    case streak >= streakBonusMinor:
        awards = append(awards, Award{Amount: streakBonusMinorXP, Source: model.XPSourceStreakBonus})
    }
    if firstEver {
        awards = append(awards, Award{Amount: model.FirstCompletionXP, Source: model.XPSourceFirstCompletion})
    }
    if perfectWeek {
        awards = append(awards, Award{Amount: model.PerfectWeekXP, Source: model.XPSourcePerfectWeek})
    }
    return awards
}

// ForgivenessAward returns the single fixed entry for a forgiven day.
// Forgiveness XP carries no bonuses.
func ForgivenessAward() []Award {
    return []Award{{Amount: model.ForgivenessXP, Source: model.XPSourceForgiveness}}
}

// Total sums a slice of awards.
func Total(awards []Award) int64 {
    var sum int64
    for _, a := range awards {
        sum += a.Amount
    }
    return sum
}

// LevelForXP maps cumulative XP to a level.  Reaching level n requires
// 100 * (n-1) * n / 2 XP: level 1 at 0, level 2 at 100, level 3 at
// 300, level 4 at 600 and so on.
func LevelForXP(total int64) int {
    if total < 0 {
        return 1
    }
    level := 1
    for threshold(level+1) <= total {
        level++
    }
    return level
}

// XPToNextLevel returns how much XP separates total from the next
// level threshold.
func XPToNextLevel(total int64) int64 {
    next := threshold(LevelForXP(total) + 1)
    return next - total
}

func threshold(level int) int64 {
    n := int64(level - 1)
    return 100 * n * (n + 1) / 2
}
