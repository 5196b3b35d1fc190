// Package audit implements a read-only validator that re-derives a
// user's state from the two ledgers and reports every place the
// stored caches or records disagree with what the invariants demand.
// It sits outside the request path and never mutates anything; the
// bulk recalculate endpoint is the repair tool for what it finds.
package audit

import (
    "context"
    "fmt"
    "time"

    "github.com/iliyamo/habit-streak-service/internal/model"
    "github.com/iliyamo/habit-streak-service/internal/repository"
    "github.com/iliyamo/habit-streak-service/internal/streak"
)

// Violation describes one failed invariant check.
type Violation struct {
    Invariant string `json:"invariant"`
    Detail    string `json:"detail"`
}

// Auditor wires the repositories the checks read from.
type Auditor struct {
    Users       *repository.UserRepo
    Habits      *repository.HabitRepo
    Completions *repository.CompletionRepo
    XP          *repository.XPRepo
}

// New constructs an Auditor. All dependencies must be non-nil.
func New(users *repository.UserRepo, habits *repository.HabitRepo, completions *repository.CompletionRepo, xp *repository.XPRepo) *Auditor {
    if users == nil || habits == nil || completions == nil || xp == nil {
        panic("nil repository passed to audit.New")
    }
    return &Auditor{Users: users, Habits: habits, Completions: completions, XP: xp}
}

// Run checks every ledger invariant for one user and returns the
// violations found; an empty slice means the state is consistent.
func (a *Auditor) Run(ctx context.Context, userID uint64) ([]Violation, error) {
    violations := make([]Violation, 0)

    user, err := a.Users.GetByID(ctx, userID)
    if err != nil {
        return nil, err
    }

    // token balance inside [0, 3]
    if user.ForgivenessTokens < 0 || user.ForgivenessTokens > model.MaxForgivenessTokens {
        violations = append(violations, Violation{
            Invariant: "token_bound",
            Detail:    fmt.Sprintf("forgiveness_tokens=%d outside [0,%d]", user.ForgivenessTokens, model.MaxForgivenessTokens),
        })
    }

    // cached total equals the ledger sum
    ledgerSum, err := a.XP.SumByUser(ctx, userID)
    if err != nil {
        return nil, err
    }
    if user.TotalXP != ledgerSum {
        violations = append(violations, Violation{
            Invariant: "xp_reconciliation",
            Detail:    fmt.Sprintf("cached total_xp=%d but ledger sums to %d", user.TotalXP, ledgerSum),
        })
    }

    completions, err := a.Completions.ListByUser(ctx, userID)
    if err != nil {
        return nil, err
    }
    seen := make(map[string]uint64, len(completions))
    for _, c := range completions {
        key := fmt.Sprintf("%d/%s", c.HabitID, c.CompletedOn)
        if prev, dup := seen[key]; dup {
            violations = append(violations, Violation{
                Invariant: "one_per_day",
                Detail:    fmt.Sprintf("completions %d and %d both cover habit %d on %s", prev, c.ID, c.HabitID, c.CompletedOn),
            })
        }
        seen[key] = c.ID

        // no completion may credit a day after its own receipt
        if day, err := time.Parse(streak.DayFormat, c.CompletedOn); err == nil {
            receiptDay := time.Date(c.CreatedAt.Year(), c.CreatedAt.Month(), c.CreatedAt.Day(), 0, 0, 0, 0, time.UTC)
            // a device a timezone ahead of the server may legitimately be one day ahead
            if day.After(receiptDay.AddDate(0, 0, 1)) {
                violations = append(violations, Violation{
                    Invariant: "no_future_days",
                    Detail:    fmt.Sprintf("completion %d credits %s but was received %s", c.ID, c.CompletedOn, receiptDay.Format(streak.DayFormat)),
                })
            }
        }

        if c.ForgivenessUsed && (c.XPEarned != model.ForgivenessXP || !c.Edited) {
            violations = append(violations, Violation{
                Invariant: "forgiveness_integrity",
                Detail:    fmt.Sprintf("completion %d has forgiveness_used but xp_earned=%d edited=%t", c.ID, c.XPEarned, c.Edited),
            })
        }
    }

    // cached aggregates equal a fresh recomputation
    habits, err := a.Habits.ListByUser(ctx, userID)
    if err != nil {
        return nil, err
    }
    // Recomputation uses the user's stored timezone. Caches written
    // under a different per-request timezone can legitimately disagree
    // around midnight offsets, so the zone used is named in the detail
    // for the reader to rule that out before treating it as drift.
    loc, err := time.LoadLocation(user.Timezone)
    if err != nil {
        loc = time.UTC
    }
    today := time.Now().In(loc)
    for _, h := range habits {
        days, err := a.Completions.DaysByHabit(ctx, h.ID)
        if err != nil {
            return nil, err
        }
        fresh := streak.Calculate(days, streak.Schedule{
            Frequency:  h.Frequency,
            DaysOfWeek: streak.ParseDaysOfWeek(h.DaysOfWeek),
        }, today)
        if fresh.CurrentStreak != h.CurrentStreak || fresh.LongestStreak != h.LongestStreak ||
            fresh.TotalCompletions != h.TotalCompletions || fresh.ConsistencyRate != h.ConsistencyRate {
            violations = append(violations, Violation{
                Invariant: "aggregate_cache",
                Detail: fmt.Sprintf("habit %d cached (%d,%d,%d,%d%%) but recomputed (%d,%d,%d,%d%%) in %s",
                    h.ID, h.CurrentStreak, h.LongestStreak, h.TotalCompletions, h.ConsistencyRate,
                    fresh.CurrentStreak, fresh.LongestStreak, fresh.TotalCompletions, fresh.ConsistencyRate,
                    loc.String()),
            })
        }
    }

    return violations, nil
}
