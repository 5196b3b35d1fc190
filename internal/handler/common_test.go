package handler

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestResolveLocation(t *testing.T) {
    t.Run("request timezone wins", func(t *testing.T) {
        loc, err := resolveLocation("Asia/Tokyo", "UTC")
        require.NoError(t, err)
        assert.Equal(t, "Asia/Tokyo", loc.String())
    })

    t.Run("unknown request timezone is an error", func(t *testing.T) {
        _, err := resolveLocation("Mars/Olympus", "UTC")
        assert.Error(t, err)
    })

    t.Run("stored timezone fallback", func(t *testing.T) {
        loc, err := resolveLocation("", "Europe/Berlin")
        require.NoError(t, err)
        assert.Equal(t, "Europe/Berlin", loc.String())
    })

    t.Run("UTC default", func(t *testing.T) {
        loc, err := resolveLocation("", "")
        require.NoError(t, err)
        assert.Equal(t, time.UTC, loc)
    })

    t.Run("broken stored timezone degrades to UTC", func(t *testing.T) {
        loc, err := resolveLocation("", "not-a-zone")
        require.NoError(t, err)
        assert.Equal(t, time.UTC, loc)
    })
}

func TestResolveDay(t *testing.T) {
    now := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)

    t.Run("defaults to today in location", func(t *testing.T) {
        loc, err := time.LoadLocation("Pacific/Auckland")
        require.NoError(t, err)
        day, err := resolveDay("", now, loc)
        require.NoError(t, err)
        // 03:00 UTC is already the next day in Auckland
        assert.Equal(t, "2024-06-01", now.Format("2006-01-02"))
        assert.Equal(t, now.In(loc).Format("2006-01-02"), day)
    })

    t.Run("explicit day passes through", func(t *testing.T) {
        day, err := resolveDay("2024-05-30", now, time.UTC)
        require.NoError(t, err)
        assert.Equal(t, "2024-05-30", day)
    })

    t.Run("malformed day rejected", func(t *testing.T) {
        _, err := resolveDay("30-05-2024", now, time.UTC)
        assert.Error(t, err)
    })
}
