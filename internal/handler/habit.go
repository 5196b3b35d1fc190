package handler

import (
    "database/sql"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/habit-streak-service/internal/database"
    "github.com/iliyamo/habit-streak-service/internal/model"
    "github.com/iliyamo/habit-streak-service/internal/repository"
)

// HabitHandler provides habit CRUD.  Archive keeps history; Delete is
// the destructive path and refunds the habit's XP contribution so the
// ledger still sums to the cached total afterwards.
type HabitHandler struct {
    Habits      *repository.HabitRepo
    Completions *repository.CompletionRepo
    XP          *repository.XPRepo
    Users       *repository.UserRepo
}

// NewHabitHandler constructs a HabitHandler.  All dependencies must be
// non-nil.
func NewHabitHandler(habits *repository.HabitRepo, completions *repository.CompletionRepo, xp *repository.XPRepo, users *repository.UserRepo) *HabitHandler {
    if habits == nil || completions == nil || xp == nil || users == nil {
        panic("nil repository passed to NewHabitHandler")
    }
    return &HabitHandler{Habits: habits, Completions: completions, XP: xp, Users: users}
}

type createHabitReq struct {
    Name       string `json:"name"`
    Frequency  string `json:"frequency"`
    DaysOfWeek []int  `json:"days_of_week"`
}

// Create handles POST /v1/habits.
func (h *HabitHandler) Create(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req createHabitReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    req.Name = strings.TrimSpace(req.Name)
    if req.Name == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
    }
    switch req.Frequency {
    case model.FrequencyDaily, model.FrequencyWeekly:
        if len(req.DaysOfWeek) > 0 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "days_of_week only applies to CUSTOM frequency"})
        }
    case model.FrequencyCustom:
        if len(req.DaysOfWeek) == 0 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "days_of_week is required for CUSTOM frequency"})
        }
        for _, d := range req.DaysOfWeek {
            if d < 0 || d > 6 {
                return c.JSON(http.StatusBadRequest, echo.Map{"error": "days_of_week values must be 0 (Sunday) through 6"})
            }
        }
    default:
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "frequency must be DAILY, WEEKLY or CUSTOM"})
    }

    rec := repository.HabitRecord{
        UserID:    userID,
        Name:      req.Name,
        Frequency: req.Frequency,
        IsActive:  true,
    }
    if req.Frequency == model.FrequencyCustom {
        parts := make([]string, 0, len(req.DaysOfWeek))
        seen := map[int]bool{}
        for _, d := range req.DaysOfWeek {
            if !seen[d] {
                seen[d] = true
                parts = append(parts, strconv.Itoa(d))
            }
        }
        rec.DaysOfWeek = strings.Join(parts, ",")
    }
    if err := h.Habits.Create(c.Request().Context(), &rec); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusCreated, habitJSON(rec))
}

// List handles GET /v1/habits and returns all of the caller's habits
// with their cached aggregates.
func (h *HabitHandler) List(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    habits, err := h.Habits.ListByUser(c.Request().Context(), userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    out := make([]echo.Map, 0, len(habits))
    for _, rec := range habits {
        out = append(out, habitJSON(rec))
    }
    return c.JSON(http.StatusOK, echo.Map{"habits": out})
}

// Get handles GET /v1/habits/:id.
func (h *HabitHandler) Get(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    habitID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || habitID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid habit id"})
    }
    rec, err := h.Habits.GetByIDForUser(c.Request().Context(), habitID, userID)
    if err != nil {
        return habitError(c, err)
    }
    return c.JSON(http.StatusOK, habitJSON(rec))
}

// Archive handles POST /v1/habits/:id/archive.  The habit stops
// accepting completions but keeps its history and aggregates.
func (h *HabitHandler) Archive(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    habitID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || habitID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid habit id"})
    }
    if err := h.Habits.Archive(c.Request().Context(), habitID, userID); err != nil {
        return habitError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "habit archived"})
}

// Delete handles DELETE /v1/habits/:id.  The habit, its completions
// and its XP contribution go together: a single refund row negates
// everything the habit ever awarded, then the completion rows and the
// habit row are removed, all in one transaction.
func (h *HabitHandler) Delete(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    habitID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || habitID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid habit id"})
    }
    ctx := c.Request().Context()

    var (
        refunded int64
        newTotal int64
        removed  int64
    )
    err = database.WithTx(ctx, h.Habits.DB(), func(tx *sql.Tx) error {
        if _, err := h.Habits.GetByIDForUserTx(ctx, tx, habitID, userID); err != nil {
            return err
        }
        sum, err := h.XP.SumByHabitTx(ctx, tx, habitID)
        if err != nil {
            return err
        }
        refunded = sum
        if sum != 0 {
            hid := habitID
            if err := h.XP.InsertTx(ctx, tx, repository.XPRecord{
                UserID: userID, HabitID: &hid, Amount: -sum, Source: model.XPSourceRefund,
            }); err != nil {
                return err
            }
        }
        if newTotal, err = h.Users.AddXPTx(ctx, tx, userID, -sum); err != nil {
            return err
        }
        if removed, err = h.Completions.DeleteByHabitTx(ctx, tx, habitID); err != nil {
            return err
        }
        return h.Habits.DeleteTx(ctx, tx, habitID)
    })
    if err != nil {
        return habitError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "message":             "habit deleted",
        "completions_removed": removed,
        "xp_refunded":         refunded,
        "total_xp":            newTotal,
    })
}

func habitError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, repository.ErrHabitNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "habit not found"})
    case errors.Is(err, repository.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}

func habitJSON(rec repository.HabitRecord) echo.Map {
    m := echo.Map{
        "id":                rec.ID,
        "name":              rec.Name,
        "frequency":         rec.Frequency,
        "is_active":         rec.IsActive,
        "current_streak":    rec.CurrentStreak,
        "longest_streak":    rec.LongestStreak,
        "total_completions": rec.TotalCompletions,
        "consistency_rate":  rec.ConsistencyRate,
        "created_at":        rec.CreatedAt.UTC().Format(time.RFC3339),
    }
    if rec.DaysOfWeek != "" {
        days := make([]int, 0, 7)
        for _, p := range strings.Split(rec.DaysOfWeek, ",") {
            if d, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
                days = append(days, d)
            }
        }
        m["days_of_week"] = days
    }
    return m
}
