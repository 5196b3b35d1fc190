package forgiveness

import (
    "sort"
    "time"

    "github.com/iliyamo/habit-streak-service/internal/streak"
)

// ScanLimit is how many recent forgiveness completions the advisory
// scan considers.
const ScanLimit = 10

// consecutiveRunThreshold is the run length at which a chain of
// adjacent forgiven days is flagged.
const consecutiveRunThreshold = 3

// Flags is the advisory result of an abuse scan.  Flags never block
// an operation; they are attached to the emitted event for the
// monitoring side to act on.
type Flags struct {
    DuplicateDates bool `json:"duplicate_dates"`
    ConsecutiveRun bool `json:"consecutive_run"`
}

// Flagged reports whether any signal fired.
func (f Flags) Flagged() bool { return f.DuplicateDates || f.ConsecutiveRun }

// Scan inspects the user's recent forgiveness days ("YYYY-MM-DD",
// any order, across all habits) for suspicious patterns: more than one
// forgiven completion sharing a calendar date, or a chain of forgiven
// days on adjacent dates reaching the run threshold.
func Scan(days []string) Flags {
    var flags Flags
    seen := make(map[string]int, len(days))
    var parsed []time.Time
    for _, d := range days {
        t, err := time.Parse(streak.DayFormat, d)
        if err != nil {
            continue
        }
        seen[d]++
        if seen[d] > 1 {
            flags.DuplicateDates = true
        }
        parsed = append(parsed, t)
    }
    sort.Slice(parsed, func(i, j int) bool { return parsed[i].After(parsed[j]) })
    run := 1
    for i := 1; i < len(parsed); i++ {
        diff := parsed[i-1].Sub(parsed[i]).Hours() / 24
        if diff <= 1 {
            run++
            if run >= consecutiveRunThreshold {
                flags.ConsecutiveRun = true
                break
            }
        } else {
            run = 1
        }
    }
    return flags
}
