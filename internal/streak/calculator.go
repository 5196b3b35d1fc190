// Package streak derives streak and consistency aggregates from a
// habit's completion history.  Everything here is pure: the same
// history, schedule and reference day always produce the same stats,
// so a recomputation can be re-run at any time (including the bulk
// repair endpoint) without side effects.
package streak

import (
    "math"
    "sort"
    "strconv"
    "strings"
    "time"
)

// DayFormat is the calendar-day encoding used across the service.
const DayFormat = "2006-01-02"

// lookbackOccurrences bounds the consistency-rate window: the rate is
// computed over at most this many expected occurrences back from today.
const lookbackOccurrences = 30

// Schedule describes when a habit is expected to occur.
// Frequency matches the model.Frequency* values; DaysOfWeek is only
// consulted for CUSTOM habits.
type Schedule struct {
    Frequency  string
    DaysOfWeek map[time.Weekday]bool
}

// Stats is the derived aggregate set written back to the habit row.
type Stats struct {
    CurrentStreak    int
    LongestStreak    int
    TotalCompletions int
    ConsistencyRate  int // integer percentage 0..100
}

// ParseDaysOfWeek converts the stored comma separated weekday list
// (0=Sunday .. 6=Saturday) into a set.  Unknown entries are skipped.
func ParseDaysOfWeek(s string) map[time.Weekday]bool {
    set := make(map[time.Weekday]bool)
    for _, part := range strings.Split(s, ",") {
        part = strings.TrimSpace(part)
        if part == "" {
            continue
        }
        n, err := strconv.Atoi(part)
        if err != nil || n < 0 || n > 6 {
            continue
        }
        set[time.Weekday(n)] = true
    }
    return set
}

// Calculate recomputes all derived aggregates from the habit's
// completion days.  days are "YYYY-MM-DD" strings in any order; today
// is the current calendar day in the habit owner's timezone.  A day
// present in the slice counts regardless of how it got there, so
// forgiven days extend streaks like real ones.
func Calculate(days []string, sched Schedule, today time.Time) Stats {
    done := make(map[string]bool, len(days))
    var parsed []time.Time
    for _, d := range days {
        t, err := time.Parse(DayFormat, d)
        if err != nil {
            continue
        }
        if !done[d] {
            parsed = append(parsed, t)
        }
        done[d] = true
    }
    stats := Stats{TotalCompletions: len(done)}
    if len(done) == 0 {
        return stats
    }
    sort.Slice(parsed, func(i, j int) bool { return parsed[i].Before(parsed[j]) })
    earliest := parsed[0]
    today = truncate(today)

    if sched.Frequency == "WEEKLY" {
        stats.CurrentStreak = currentWeekly(done, today)
        stats.LongestStreak = longestWeekly(done, earliest, today)
        stats.ConsistencyRate = consistencyWeekly(done, earliest, today)
        return stats
    }

    stats.CurrentStreak = currentRun(done, sched, today)
    stats.LongestStreak = longestRun(done, sched, earliest, today)
    stats.ConsistencyRate = consistency(done, sched, earliest, today)
    return stats
}

func truncate(t time.Time) time.Time {
    return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// expected reports whether the schedule expects an occurrence on day.
func expected(sched Schedule, day time.Time) bool {
    if sched.Frequency == "CUSTOM" {
        return sched.DaysOfWeek[day.Weekday()]
    }
    return true // DAILY
}

// currentRun counts consecutive completed expected days back from
// today.  Today itself gets grace: an expected day is only "missed"
// once it is over, so an incomplete today starts the count at
// yesterday instead of breaking the streak.
func currentRun(done map[string]bool, sched Schedule, today time.Time) int {
    day := today
    // skip today when it is expected but not yet completed
    if expected(sched, day) && !done[day.Format(DayFormat)] {
        day = day.AddDate(0, 0, -1)
    }
    count := 0
    for i := 0; i < 36600; i++ { // hard bound, ~100 years
        if expected(sched, day) {
            if !done[day.Format(DayFormat)] {
                break
            }
            count++
        }
        day = day.AddDate(0, 0, -1)
    }
    return count
}

// longestRun finds the maximum run of completed expected days over the
// whole history.
func longestRun(done map[string]bool, sched Schedule, earliest, today time.Time) int {
    longest, run := 0, 0
    for day := earliest; !day.After(today); day = day.AddDate(0, 0, 1) {
        if !expected(sched, day) {
            continue
        }
        if done[day.Format(DayFormat)] {
            run++
            if run > longest {
                longest = run
            }
        } else if !day.Equal(today) {
            // an incomplete today does not end the active run
            run = 0
        }
    }
    return longest
}

// consistency computes completions over expected occurrences within
// the lookback window, rounded to an integer percentage.
func consistency(done map[string]bool, sched Schedule, earliest, today time.Time) int {
    exp, hit := 0, 0
    for day := today; !day.Before(earliest) && exp < lookbackOccurrences; day = day.AddDate(0, 0, -1) {
        if !expected(sched, day) {
            continue
        }
        exp++
        if done[day.Format(DayFormat)] {
            hit++
        }
    }
    return percent(hit, exp)
}

// weekSatisfied reports whether any completion falls inside the 7-day
// window ending at end (inclusive).
func weekSatisfied(done map[string]bool, end time.Time) bool {
    for i := 0; i < 7; i++ {
        if done[end.AddDate(0, 0, -i).Format(DayFormat)] {
            return true
        }
    }
    return false
}

// currentWeekly counts consecutive satisfied 7-day windows back from
// today.  The window still in progress gets the same grace as an
// incomplete today for daily habits.
func currentWeekly(done map[string]bool, today time.Time) int {
    end := today
    if !weekSatisfied(done, end) {
        end = end.AddDate(0, 0, -7)
    }
    count := 0
    for i := 0; i < 5300; i++ { // hard bound, ~100 years of weeks
        if !weekSatisfied(done, end) {
            break
        }
        count++
        end = end.AddDate(0, 0, -7)
    }
    return count
}

func longestWeekly(done map[string]bool, earliest, today time.Time) int {
    longest, run := 0, 0
    // align windows so the newest one ends today
    start := today
    for start.AddDate(0, 0, -7).After(earliest) || start.AddDate(0, 0, -7).Equal(earliest) {
        start = start.AddDate(0, 0, -7)
    }
    for end := start; !end.After(today); end = end.AddDate(0, 0, 7) {
        if weekSatisfied(done, end) {
            run++
            if run > longest {
                longest = run
            }
        } else if !end.Equal(today) {
            run = 0
        }
    }
    return longest
}

func consistencyWeekly(done map[string]bool, earliest, today time.Time) int {
    exp, hit := 0, 0
    for end := today; !end.Before(earliest) && exp < lookbackOccurrences; end = end.AddDate(0, 0, -7) {
        exp++
        if weekSatisfied(done, end) {
            hit++
        }
    }
    return percent(hit, exp)
}

func percent(hit, exp int) int {
    if exp == 0 {
        return 0
    }
    return int(math.Round(float64(hit) / float64(exp) * 100))
}
