package forgiveness

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/habit-streak-service/internal/model"
    "github.com/iliyamo/habit-streak-service/internal/repository"
    "github.com/iliyamo/habit-streak-service/internal/streak"
)

func TestCheckEligibility(t *testing.T) {
    now := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)
    dayAgo := func(n int) string {
        return now.AddDate(0, 0, -n).Format(streak.DayFormat)
    }

    t.Run("yesterday is one day late", func(t *testing.T) {
        late, err := CheckEligibility(model.FrequencyDaily, dayAgo(1), now)
        require.NoError(t, err)
        assert.Equal(t, 1, late)
    })

    t.Run("seventh day is the window edge", func(t *testing.T) {
        late, err := CheckEligibility(model.FrequencyDaily, dayAgo(7), now)
        require.NoError(t, err)
        assert.Equal(t, 7, late)
    })

    t.Run("eighth day is outside the window", func(t *testing.T) {
        _, err := CheckEligibility(model.FrequencyDaily, dayAgo(8), now)
        assert.ErrorIs(t, err, repository.ErrForgivenessWindow)
    })

    t.Run("today cannot be forgiven", func(t *testing.T) {
        _, err := CheckEligibility(model.FrequencyDaily, dayAgo(0), now)
        assert.ErrorIs(t, err, repository.ErrForgivenessWindow)
    })

    t.Run("future day cannot be forgiven", func(t *testing.T) {
        _, err := CheckEligibility(model.FrequencyDaily, dayAgo(-1), now)
        assert.ErrorIs(t, err, repository.ErrForgivenessWindow)
    })

    t.Run("weekly habit is not eligible", func(t *testing.T) {
        _, err := CheckEligibility(model.FrequencyWeekly, dayAgo(1), now)
        assert.ErrorIs(t, err, repository.ErrHabitNotEligible)
    })

    t.Run("custom habit is not eligible", func(t *testing.T) {
        _, err := CheckEligibility(model.FrequencyCustom, dayAgo(1), now)
        assert.ErrorIs(t, err, repository.ErrHabitNotEligible)
    })

    t.Run("malformed day", func(t *testing.T) {
        _, err := CheckEligibility(model.FrequencyDaily, "2024/03/14", now)
        assert.ErrorIs(t, err, repository.ErrForgivenessWindow)
    })
}

func TestLocalMidnight(t *testing.T) {
    loc, err := time.LoadLocation("America/New_York")
    require.NoError(t, err)

    // 02:00 UTC on March 16 is still the evening of March 15 in New York.
    now := time.Date(2024, 3, 16, 2, 0, 0, 0, time.UTC)
    mid := LocalMidnight(now, loc)
    assert.Equal(t, 2024, mid.Year())
    assert.Equal(t, time.March, mid.Month())
    assert.Equal(t, 15, mid.Day())
    assert.Equal(t, 0, mid.Hour())
    assert.Equal(t, loc, mid.Location())
}
