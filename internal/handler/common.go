package handler

import (
    "errors"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/habit-streak-service/internal/streak"
)

// getUserID extracts the authenticated user's ID from the Echo
// context.  The JWT middleware stores the subject claim, whose type
// depends on how the token was decoded, so several representations
// are accepted.
func getUserID(c echo.Context) (uint64, error) {
    v := c.Get("user_id")
    switch t := v.(type) {
    case uint64:
        return t, nil
    case int:
        return uint64(t), nil
    case int64:
        return uint64(t), nil
    case float64:
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// resolveLocation loads the timezone supplied with a request, falling
// back to the user's stored timezone and finally UTC.  An explicitly
// supplied but unknown name is an error so the caller can return 400
// instead of silently crediting the wrong calendar day.
func resolveLocation(requested, stored string) (*time.Location, error) {
    if requested != "" {
        return time.LoadLocation(requested)
    }
    if stored != "" {
        if loc, err := time.LoadLocation(stored); err == nil {
            return loc, nil
        }
    }
    return time.UTC, nil
}

// resolveDay validates an explicit "YYYY-MM-DD" day or defaults to
// today in the given location.
func resolveDay(day string, now time.Time, loc *time.Location) (string, error) {
    if day == "" {
        return now.In(loc).Format(streak.DayFormat), nil
    }
    if _, err := time.Parse(streak.DayFormat, day); err != nil {
        return "", err
    }
    return day, nil
}
