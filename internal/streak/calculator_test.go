package streak

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
)

// 2024-01-01 is a Monday, which makes weekday math in the custom
// schedule cases readable.
var monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func day(base time.Time, offset int) string {
    return base.AddDate(0, 0, offset).Format(DayFormat)
}

func daily() Schedule { return Schedule{Frequency: "DAILY"} }

func TestCalculate_Daily(t *testing.T) {
    today := monday.AddDate(0, 0, 10)

    t.Run("three consecutive days", func(t *testing.T) {
        days := []string{day(today, 0), day(today, -1), day(today, -2)}
        stats := Calculate(days, daily(), today)
        assert.Equal(t, 3, stats.CurrentStreak)
        assert.Equal(t, 3, stats.LongestStreak)
        assert.Equal(t, 3, stats.TotalCompletions)
        assert.Equal(t, 100, stats.ConsistencyRate)
    })

    t.Run("gap resets current streak", func(t *testing.T) {
        days := []string{day(today, 0), day(today, -2)}
        stats := Calculate(days, daily(), today)
        assert.Equal(t, 1, stats.CurrentStreak)
        assert.Equal(t, 1, stats.LongestStreak)
        assert.Equal(t, 2, stats.TotalCompletions)
        assert.Equal(t, 67, stats.ConsistencyRate)
    })

    t.Run("incomplete today does not break the streak", func(t *testing.T) {
        days := []string{day(today, -1), day(today, -2)}
        stats := Calculate(days, daily(), today)
        assert.Equal(t, 2, stats.CurrentStreak)
        assert.Equal(t, 2, stats.LongestStreak)
    })

    t.Run("missed yesterday ends the streak", func(t *testing.T) {
        days := []string{day(today, -2), day(today, -3)}
        stats := Calculate(days, daily(), today)
        assert.Equal(t, 0, stats.CurrentStreak)
        assert.Equal(t, 2, stats.LongestStreak)
    })

    t.Run("longest streak survives later gaps", func(t *testing.T) {
        days := []string{
            day(today, 0),
            day(today, -3), day(today, -4), day(today, -5), day(today, -6),
        }
        stats := Calculate(days, daily(), today)
        assert.Equal(t, 1, stats.CurrentStreak)
        assert.Equal(t, 4, stats.LongestStreak)
    })

    t.Run("empty history", func(t *testing.T) {
        stats := Calculate(nil, daily(), today)
        assert.Equal(t, Stats{}, stats)
    })

    t.Run("duplicate days are counted once", func(t *testing.T) {
        days := []string{day(today, 0), day(today, 0), day(today, -1)}
        stats := Calculate(days, daily(), today)
        assert.Equal(t, 2, stats.TotalCompletions)
        assert.Equal(t, 2, stats.CurrentStreak)
    })

    t.Run("malformed entries are skipped", func(t *testing.T) {
        days := []string{day(today, 0), "not-a-date"}
        stats := Calculate(days, daily(), today)
        assert.Equal(t, 1, stats.TotalCompletions)
    })
}

func TestCalculate_Idempotent(t *testing.T) {
    today := monday.AddDate(0, 0, 20)
    days := []string{day(today, 0), day(today, -1), day(today, -3), day(today, -4)}
    first := Calculate(days, daily(), today)
    second := Calculate(days, daily(), today)
    assert.Equal(t, first, second)
}

func TestCalculate_Custom(t *testing.T) {
    sched := Schedule{
        Frequency:  "CUSTOM",
        DaysOfWeek: ParseDaysOfWeek("1,3,5"), // Mon, Wed, Fri
    }
    friday := monday.AddDate(0, 0, 4)

    t.Run("only scheduled days count", func(t *testing.T) {
        days := []string{day(monday, 0), day(monday, 2), day(monday, 4)}
        stats := Calculate(days, sched, friday)
        assert.Equal(t, 3, stats.CurrentStreak)
        assert.Equal(t, 3, stats.LongestStreak)
        assert.Equal(t, 100, stats.ConsistencyRate)
    })

    t.Run("off-schedule gaps do not reset", func(t *testing.T) {
        // Monday and Wednesday done, Friday in progress: Tuesday and
        // Thursday are not expected, so the run holds at 2.
        days := []string{day(monday, 0), day(monday, 2)}
        stats := Calculate(days, sched, friday)
        assert.Equal(t, 2, stats.CurrentStreak)
    })

    t.Run("missed scheduled day resets", func(t *testing.T) {
        // Wednesday missed: only Friday counts toward the current run.
        days := []string{day(monday, 0), day(monday, 4)}
        stats := Calculate(days, sched, friday)
        assert.Equal(t, 1, stats.CurrentStreak)
        assert.Equal(t, 1, stats.LongestStreak)
    })
}

func TestCalculate_Weekly(t *testing.T) {
    weekly := Schedule{Frequency: "WEEKLY"}
    today := monday.AddDate(0, 0, 20) // Sunday, three weeks in

    t.Run("one completion per week sustains the streak", func(t *testing.T) {
        days := []string{day(monday, 1), day(monday, 9), day(monday, 17)}
        stats := Calculate(days, weekly, today)
        assert.Equal(t, 3, stats.CurrentStreak)
        assert.Equal(t, 3, stats.LongestStreak)
        assert.Equal(t, 100, stats.ConsistencyRate)
    })

    t.Run("in-progress week gets grace", func(t *testing.T) {
        days := []string{day(monday, 1), day(monday, 9)}
        stats := Calculate(days, weekly, today)
        assert.Equal(t, 2, stats.CurrentStreak)
    })

    t.Run("empty week breaks the streak", func(t *testing.T) {
        days := []string{day(monday, 1), day(monday, 17)}
        stats := Calculate(days, weekly, today)
        assert.Equal(t, 1, stats.CurrentStreak)
    })
}

func TestParseDaysOfWeek(t *testing.T) {
    t.Run("valid list", func(t *testing.T) {
        set := ParseDaysOfWeek("0, 3,6")
        assert.True(t, set[time.Sunday])
        assert.True(t, set[time.Wednesday])
        assert.True(t, set[time.Saturday])
        assert.False(t, set[time.Monday])
    })

    t.Run("junk entries skipped", func(t *testing.T) {
        set := ParseDaysOfWeek("1,x,9,-1,")
        assert.Len(t, set, 1)
        assert.True(t, set[time.Monday])
    })

    t.Run("empty string", func(t *testing.T) {
        assert.Empty(t, ParseDaysOfWeek(""))
    })
}
