// Package forgiveness holds the pure parts of the forgiveness token
// subsystem: the eligibility rules evaluated before a token spend and
// the advisory abuse scan run after one.  The atomic balance decrement
// itself lives in the repository layer, inside the same transaction as
// the grant record and the forgiven completion.
package forgiveness

import (
    "time"

    "github.com/iliyamo/habit-streak-service/internal/model"
    "github.com/iliyamo/habit-streak-service/internal/repository"
    "github.com/iliyamo/habit-streak-service/internal/streak"
)

// CheckEligibility runs the stateless prefix of the eligibility chain:
// habit frequency must be DAILY, and the requested day must be
// strictly in the past but at most ForgivenessWindowDays old.  now is
// the current instant in the request's timezone.  On success the
// number of days late is returned for the completion's metadata.
//
// Balance, daily cap and duplicate checks are stateful and evaluated
// afterwards by the handler inside the spend transaction, in that
// order, so the first failing rule is the one reported.
func CheckEligibility(frequency, day string, now time.Time) (int, error) {
    if frequency != model.FrequencyDaily {
        return 0, repository.ErrHabitNotEligible
    }
    requested, err := time.Parse(streak.DayFormat, day)
    if err != nil {
        return 0, repository.ErrForgivenessWindow
    }
    today, err := time.Parse(streak.DayFormat, now.Format(streak.DayFormat))
    if err != nil {
        return 0, err
    }
    late := int(today.Sub(requested).Hours() / 24)
    if late <= 0 || late > model.ForgivenessWindowDays {
        return 0, repository.ErrForgivenessWindow
    }
    return late, nil
}

// LocalMidnight returns the start of the current day in loc, used as
// the lower bound when counting grants against the daily cap.
func LocalMidnight(now time.Time, loc *time.Location) time.Time {
    local := now.In(loc)
    return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
