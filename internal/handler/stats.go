package handler

import (
    "database/sql"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/habit-streak-service/internal/audit"
    "github.com/iliyamo/habit-streak-service/internal/database"
    "github.com/iliyamo/habit-streak-service/internal/repository"
    "github.com/iliyamo/habit-streak-service/internal/streak"
)

// StatsHandler exposes the repair and validation endpoints: a bulk
// recompute that rebuilds every derived cache from the completion
// ledger, and a read-only audit that reports where stored state
// disagrees with the ledgers.
type StatsHandler struct {
    Users       *repository.UserRepo
    Habits      *repository.HabitRepo
    Completions *repository.CompletionRepo
    Auditor     *audit.Auditor
}

// NewStatsHandler constructs a StatsHandler. All dependencies must be
// non-nil.
func NewStatsHandler(users *repository.UserRepo, habits *repository.HabitRepo, completions *repository.CompletionRepo, auditor *audit.Auditor) *StatsHandler {
    if users == nil || habits == nil || completions == nil || auditor == nil {
        panic("nil dependency passed to NewStatsHandler")
    }
    return &StatsHandler{Users: users, Habits: habits, Completions: completions, Auditor: auditor}
}

// Recalculate handles POST /v1/stats/recalculate.  Every habit's
// streak and consistency cache is rebuilt from its completion history.
// Each habit recomputes in its own short transaction under the habit's
// row lock, so an in-flight completion either lands before the
// recompute and is included, or after it and refreshes the cache
// itself.  The operation is idempotent.
func (h *StatsHandler) Recalculate(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ctx := c.Request().Context()
    user, err := h.Users.GetByID(ctx, userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    loc, err := time.LoadLocation(user.Timezone)
    if err != nil {
        loc = time.UTC
    }
    today := time.Now().In(loc)

    habits, err := h.Habits.ListByUser(ctx, userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }

    results := make([]echo.Map, 0, len(habits))
    changed := 0
    for _, rec := range habits {
        var fresh streak.Stats
        err := database.WithTx(ctx, h.Habits.DB(), func(tx *sql.Tx) error {
            locked, err := h.Habits.GetByIDForUserTx(ctx, tx, rec.ID, userID)
            if err != nil {
                return err
            }
            days, err := h.Completions.DaysByHabitTx(ctx, tx, locked.ID)
            if err != nil {
                return err
            }
            fresh = streak.Calculate(days, streak.Schedule{
                Frequency:  locked.Frequency,
                DaysOfWeek: streak.ParseDaysOfWeek(locked.DaysOfWeek),
            }, today)
            return h.Habits.UpdateAggregatesTx(ctx, tx, locked.ID,
                fresh.CurrentStreak, fresh.LongestStreak, fresh.TotalCompletions, fresh.ConsistencyRate)
        })
        if err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
        }
        if fresh.CurrentStreak != rec.CurrentStreak || fresh.LongestStreak != rec.LongestStreak ||
            fresh.TotalCompletions != rec.TotalCompletions || fresh.ConsistencyRate != rec.ConsistencyRate {
            changed++
        }
        results = append(results, echo.Map{
            "habit_id":          rec.ID,
            "current_streak":    fresh.CurrentStreak,
            "longest_streak":    fresh.LongestStreak,
            "total_completions": fresh.TotalCompletions,
            "consistency_rate":  fresh.ConsistencyRate,
        })
    }
    return c.JSON(http.StatusOK, echo.Map{
        "habits_recalculated": len(results),
        "habits_changed":      changed,
        "habits":              results,
    })
}

// Audit handles GET /v1/stats/audit.  It never mutates anything; a
// non-empty violation list is the cue to run the recalculate repair or
// to investigate the ledger by hand.
func (h *StatsHandler) Audit(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    violations, err := h.Auditor.Run(c.Request().Context(), userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "consistent": len(violations) == 0,
        "violations": violations,
    })
}
