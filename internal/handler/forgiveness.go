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
    "github.com/iliyamo/habit-streak-service/internal/forgiveness"
    "github.com/iliyamo/habit-streak-service/internal/gamification"
    "github.com/iliyamo/habit-streak-service/internal/model"
    "github.com/iliyamo/habit-streak-service/internal/queue"
    "github.com/iliyamo/habit-streak-service/internal/repository"
    queue_publisher "github.com/iliyamo/habit-streak-service/internal/service"
    "github.com/iliyamo/habit-streak-service/internal/streak"
)

// ForgivenessHandler spends forgiveness tokens to backfill missed days.
// The eligibility rules run in a fixed order (frequency, window, token
// balance, daily cap, duplicate) and the first failing rule is the one
// reported.  The stateful tail of the chain runs inside one
// transaction holding the user's row lock, so concurrent spends of the
// last token resolve to exactly one grant.
type ForgivenessHandler struct {
    Users       *repository.UserRepo
    Habits      *repository.HabitRepo
    Completions *repository.CompletionRepo
    XP          *repository.XPRepo
    Grants      *repository.ForgivenessRepo
}

// NewForgivenessHandler constructs a ForgivenessHandler.  All
// dependencies must be non-nil.
func NewForgivenessHandler(users *repository.UserRepo, habits *repository.HabitRepo, completions *repository.CompletionRepo, xp *repository.XPRepo, grants *repository.ForgivenessRepo) *ForgivenessHandler {
    if users == nil || habits == nil || completions == nil || xp == nil || grants == nil {
        panic("nil repository passed to NewForgivenessHandler")
    }
    return &ForgivenessHandler{Users: users, Habits: habits, Completions: completions, XP: xp, Grants: grants}
}

// Forgive handles POST /v1/habits/:id/forgive.  The body must carry
// "day" (YYYY-MM-DD, a missed day within the last seven); "timezone"
// is optional.  On success it returns 201 with the forgiven
// completion, the remaining token balance and the advisory abuse scan
// result.
func (h *ForgivenessHandler) Forgive(c echo.Context) error {
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
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.Day == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "day is required"})
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

    var (
        rec       repository.CompletionRecord
        stats     streak.Stats
        awarded   int64
        newTotal  int64
        remaining int
        daysLate  int
    )
    err = database.WithTx(ctx, h.Habits.DB(), func(tx *sql.Tx) error {
        habit, err := h.Habits.GetByIDForUserTx(ctx, tx, habitID, userID)
        if err != nil {
            return err
        }
        if !habit.IsActive {
            return repository.ErrHabitArchived
        }

        daysLate, err = forgiveness.CheckEligibility(habit.Frequency, body.Day, now.In(loc))
        if err != nil {
            return err
        }

        // Lock the user row before the balance and cap checks so a
        // concurrent spend for the same user waits behind this one.
        tokens, err := h.Users.TokensTx(ctx, tx, userID)
        if err != nil {
            return err
        }
        if tokens <= 0 {
            return repository.ErrInsufficientTokens
        }
        count, err := h.Grants.CountSinceTx(ctx, tx, userID, forgiveness.LocalMidnight(now, loc))
        if err != nil {
            return err
        }
        if count >= model.DailyForgivenessLimit {
            return repository.ErrDailyForgivenessLimit
        }

        rec = repository.CompletionRecord{
            HabitID:         habitID,
            UserID:          userID,
            CompletedOn:     body.Day,
            XPEarned:        model.ForgivenessXP,
            ForgivenessUsed: true,
            Edited:          true,
            DaysLate:        daysLate,
        }
        if err := h.Completions.InsertTx(ctx, tx, &rec); err != nil {
            return err
        }
        if err := h.Grants.InsertGrantTx(ctx, tx, userID, habitID, body.Day); err != nil {
            return err
        }
        if err := h.Users.DecrementTokenTx(ctx, tx, userID); err != nil {
            return err
        }
        remaining = tokens - 1

        days, err := h.Completions.DaysByHabitTx(ctx, tx, habitID)
        if err != nil {
            return err
        }
        sched := streak.Schedule{
            Frequency:  habit.Frequency,
            DaysOfWeek: streak.ParseDaysOfWeek(habit.DaysOfWeek),
        }
        stats = streak.Calculate(days, sched, now.In(loc))

        awards := gamification.ForgivenessAward()
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
        return forgivenessError(c, err)
    }

    // Advisory only: flags are reported and published, never enforced.
    flags := forgiveness.Flags{}
    if recent, scanErr := h.Completions.RecentForgivenByUser(ctx, userID, forgiveness.ScanLimit); scanErr != nil {
        log.Printf("forgiveness: abuse scan query failed: %v", scanErr)
    } else {
        flags = forgiveness.Scan(recent)
    }

    oldLevel := gamification.LevelForXP(newTotal - awarded)
    newLevel := gamification.LevelForXP(newTotal)

    go publishForgiveness(rec, daysLate, remaining, flags.Flagged(), newTotal, oldLevel, newLevel, awarded)

    return c.JSON(http.StatusCreated, echo.Map{
        "completion": echo.Map{
            "id":               rec.ID,
            "habit_id":         rec.HabitID,
            "completed_on":     rec.CompletedOn,
            "created_at":       rec.CreatedAt.UTC().Format(time.RFC3339),
            "xp_earned":        rec.XPEarned,
            "forgiveness_used": true,
            "edited":           true,
            "days_late":        daysLate,
        },
        "xp_earned":        awarded,
        "total_xp":         newTotal,
        "level":            newLevel,
        "remaining_tokens": remaining,
        "abuse_flagged":    flags.Flagged(),
        "current_streak":   stats.CurrentStreak,
        "longest_streak":   stats.LongestStreak,
    })
}

// forgivenessError maps each eligibility failure to its own status and
// message so clients can tell which rule rejected the spend.
func forgivenessError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, repository.ErrHabitNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "habit not found"})
    case errors.Is(err, repository.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    case errors.Is(err, repository.ErrHabitArchived):
        return c.JSON(http.StatusConflict, echo.Map{"error": "habit archived"})
    case errors.Is(err, repository.ErrHabitNotEligible):
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "habit is not eligible for forgiveness"})
    case errors.Is(err, repository.ErrForgivenessWindow):
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "day is outside the forgiveness window"})
    case errors.Is(err, repository.ErrInsufficientTokens):
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "no forgiveness tokens remaining"})
    case errors.Is(err, repository.ErrDailyForgivenessLimit):
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "daily forgiveness limit reached"})
    case errors.Is(err, repository.ErrDuplicateCompletion):
        return c.JSON(http.StatusConflict, echo.Map{"error": "day already completed"})
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}

func publishForgiveness(rec repository.CompletionRecord, daysLate, remaining int, flagged bool, newTotal int64, oldLevel, newLevel int, awarded int64) {
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    at := time.Now().UTC().Format(time.RFC3339)
    if err := queue_publisher.PublishForgivenessUsed(ctx, queue.ForgivenessUsedEvent{
        CompletionID:    rec.ID,
        HabitID:         rec.HabitID,
        UserID:          rec.UserID,
        ForgivenOn:      rec.CompletedOn,
        DaysLate:        daysLate,
        RemainingTokens: remaining,
        AbuseFlagged:    flagged,
        GrantedAt:       at,
    }); err != nil {
        log.Printf("forgiveness: publish forgiveness.used failed: %v", err)
    }
    if err := queue_publisher.PublishXPGained(ctx, queue.XPGainedEvent{
        UserID:   rec.UserID,
        Amount:   awarded,
        Source:   model.XPSourceForgiveness,
        TotalXP:  newTotal,
        Level:    newLevel,
        GainedAt: at,
    }); err != nil {
        log.Printf("forgiveness: publish xp.gained failed: %v", err)
    }
    if newLevel > oldLevel {
        if err := queue_publisher.PublishLevelUp(ctx, queue.LevelUpEvent{
            UserID:    rec.UserID,
            OldLevel:  oldLevel,
            NewLevel:  newLevel,
            TotalXP:   newTotal,
            LeveledAt: at,
        }); err != nil {
            log.Printf("forgiveness: publish level.up failed: %v", err)
        }
    }
}
