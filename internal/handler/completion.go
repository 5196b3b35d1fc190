package handler

import (
    "context"
    "database/sql"
    "errors"
    "log"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/habit-streak-service/internal/database"
    "github.com/iliyamo/habit-streak-service/internal/gamification"
    "github.com/iliyamo/habit-streak-service/internal/model"
    "github.com/iliyamo/habit-streak-service/internal/queue"
    "github.com/iliyamo/habit-streak-service/internal/repository"
    queue_publisher "github.com/iliyamo/habit-streak-service/internal/service"
    "github.com/iliyamo/habit-streak-service/internal/streak"
)

// CompletionHandler records habit completions.  The uniqueness check,
// the ledger insert, the XP award and the aggregate refresh run in one
// transaction so a completion is never observably half applied: either
// everything commits or the caller gets a specific error.  Events are
// published only after commit and never on the request's critical path.
type CompletionHandler struct {
    Users       *repository.UserRepo
    Habits      *repository.HabitRepo
    Completions *repository.CompletionRepo
    XP          *repository.XPRepo
}

// NewCompletionHandler constructs a CompletionHandler.  All
// dependencies must be non-nil.
func NewCompletionHandler(users *repository.UserRepo, habits *repository.HabitRepo, completions *repository.CompletionRepo, xp *repository.XPRepo) *CompletionHandler {
    if users == nil || habits == nil || completions == nil || xp == nil {
        panic("nil repository passed to NewCompletionHandler")
    }
    return &CompletionHandler{Users: users, Habits: habits, Completions: completions, XP: xp}
}

// Complete handles POST /v1/habits/:id/complete.  The optional body
// may carry "day" (YYYY-MM-DD) and "timezone"; day defaults to today
// in the resolved timezone.  On success it returns 201 with the
// completion, the XP credited (base plus bonuses) and the resulting
// level state.  A second identical request returns 409.
func (h *CompletionHandler) Complete(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    habitID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || habitID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid habit id"})
    }
    var body struct {
        Day      string `json:"day"`
        Timezone string `json:"timezone"`
    }
    if err := c.Bind(&body); err != nil && c.Request().ContentLength > 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }

    ctx := c.Request().Context()
    user, err := h.Users.GetByID(ctx, userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    loc, err := resolveLocation(body.Timezone, user.Timezone)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown timezone"})
    }
    now := time.Now()
    day, err := resolveDay(body.Day, now, loc)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid day"})
    }
    today := now.In(loc).Format(streak.DayFormat)
    if day > today {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "day cannot be in the future"})
    }

    var (
        rec      repository.CompletionRecord
        stats    streak.Stats
        awarded  int64
        newTotal int64
    )
    err = database.WithTx(ctx, h.Habits.DB(), func(tx *sql.Tx) error {
        habit, err := h.Habits.GetByIDForUserTx(ctx, tx, habitID, userID)
        if err != nil {
            return err
        }
        if !habit.IsActive {
            return repository.ErrHabitArchived
        }

        rec = repository.CompletionRecord{
            HabitID:     habitID,
            UserID:      userID,
            CompletedOn: day,
            XPEarned:    model.CompletionXP,
        }
        if err := h.Completions.InsertTx(ctx, tx, &rec); err != nil {
            return err
        }

        days, err := h.Completions.DaysByHabitTx(ctx, tx, habitID)
        if err != nil {
            return err
        }
        sched := streak.Schedule{
            Frequency:  habit.Frequency,
            DaysOfWeek: streak.ParseDaysOfWeek(habit.DaysOfWeek),
        }
        stats = streak.Calculate(days, sched, now.In(loc))

        firstEver := len(days) == 1
        perfectWeek := habit.Frequency == model.FrequencyDaily &&
            stats.CurrentStreak > 0 && stats.CurrentStreak%7 == 0
        awards := gamification.CompletionAwards(firstEver, stats.CurrentStreak, perfectWeek)
        recs := make([]repository.XPRecord, 0, len(awards))
        for _, a := range awards {
            hid := habitID
            recs = append(recs, repository.XPRecord{UserID: userID, HabitID: &hid, Amount: a.Amount, Source: a.Source})
        }
        if err := h.XP.InsertAllTx(ctx, tx, recs); err != nil {
            return err
        }
        awarded = gamification.Total(awards)
        newTotal, err = h.Users.AddXPTx(ctx, tx, userID, awarded)
        if err != nil {
            return err
        }
        return h.Habits.UpdateAggregatesTx(ctx, tx, habitID,
            stats.CurrentStreak, stats.LongestStreak, stats.TotalCompletions, stats.ConsistencyRate)
    })
    if err != nil {
        return completionError(c, err)
    }

    oldLevel := gamification.LevelForXP(newTotal - awarded)
    newLevel := gamification.LevelForXP(newTotal)
    leveledUp := newLevel > oldLevel

    go publishCompletion(rec, stats, awarded, newTotal, oldLevel, newLevel)

    resp := echo.Map{
        "completion": echo.Map{
            "id":               rec.ID,
            "habit_id":         rec.HabitID,
            "completed_on":     rec.CompletedOn,
            "created_at":       rec.CreatedAt.UTC().Format(time.RFC3339),
            "xp_earned":        rec.XPEarned,
            "forgiveness_used": false,
            "edited":           false,
        },
        "xp_earned":      awarded,
        "total_xp":       newTotal,
        "level":          newLevel,
        "leveled_up":     leveledUp,
        "current_streak": stats.CurrentStreak,
        "longest_streak": stats.LongestStreak,
    }
    if leveledUp {
        resp["new_level"] = newLevel
    }
    return c.JSON(http.StatusCreated, resp)
}

// completionError maps ledger errors to specific HTTP responses so
// validation outcomes are never collapsed into a generic failure.
func completionError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, repository.ErrHabitNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "habit not found"})
    case errors.Is(err, repository.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    case errors.Is(err, repository.ErrHabitArchived):
        return c.JSON(http.StatusConflict, echo.Map{"error": "habit archived"})
    case errors.Is(err, repository.ErrDuplicateCompletion):
        return c.JSON(http.StatusConflict, echo.Map{"error": "already completed for this day"})
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}

// publishCompletion emits the post-commit events.  Failures are logged
// by the publisher and dropped; consumers cannot fail a committed
// completion.
func publishCompletion(rec repository.CompletionRecord, stats streak.Stats, awarded, newTotal int64, oldLevel, newLevel int) {
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    at := time.Now().UTC().Format(time.RFC3339)
    if err := queue_publisher.PublishHabitCompleted(ctx, queue.HabitCompletedEvent{
        CompletionID:  rec.ID,
        HabitID:       rec.HabitID,
        UserID:        rec.UserID,
        CompletedOn:   rec.CompletedOn,
        XPEarned:      awarded,
        CurrentStreak: stats.CurrentStreak,
        LongestStreak: stats.LongestStreak,
        CompletedAt:   at,
    }); err != nil {
        log.Printf("completion: publish habit.completed failed: %v", err)
    }
    if err := queue_publisher.PublishXPGained(ctx, queue.XPGainedEvent{
        UserID:   rec.UserID,
        Amount:   awarded,
        Source:   model.XPSourceHabitCompletion,
        TotalXP:  newTotal,
        Level:    newLevel,
        GainedAt: at,
    }); err != nil {
        log.Printf("completion: publish xp.gained failed: %v", err)
    }
    if newLevel > oldLevel {
        if err := queue_publisher.PublishLevelUp(ctx, queue.LevelUpEvent{
            UserID:    rec.UserID,
            OldLevel:  oldLevel,
            NewLevel:  newLevel,
            TotalXP:   newTotal,
            LeveledAt: at,
        }); err != nil {
            log.Printf("completion: publish level.up failed: %v", err)
        }
    }
}
