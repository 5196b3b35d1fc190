package forgiveness

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestScan(t *testing.T) {
    t.Run("spread-out days raise no flags", func(t *testing.T) {
        flags := Scan([]string{"2024-03-01", "2024-03-05", "2024-03-10"})
        assert.False(t, flags.Flagged())
    })

    t.Run("empty scan", func(t *testing.T) {
        assert.False(t, Scan(nil).Flagged())
    })

    t.Run("duplicate date across habits", func(t *testing.T) {
        flags := Scan([]string{"2024-03-01", "2024-03-01", "2024-03-10"})
        assert.True(t, flags.DuplicateDates)
        assert.True(t, flags.Flagged())
    })

    t.Run("three adjacent days flag a run", func(t *testing.T) {
        flags := Scan([]string{"2024-03-01", "2024-03-02", "2024-03-03"})
        assert.True(t, flags.ConsecutiveRun)
    })

    t.Run("two adjacent days do not", func(t *testing.T) {
        flags := Scan([]string{"2024-03-01", "2024-03-02", "2024-03-10"})
        assert.False(t, flags.ConsecutiveRun)
    })

    t.Run("order does not matter", func(t *testing.T) {
        flags := Scan([]string{"2024-03-03", "2024-03-01", "2024-03-02"})
        assert.True(t, flags.ConsecutiveRun)
    })

    t.Run("malformed entries are skipped", func(t *testing.T) {
        flags := Scan([]string{"2024-03-01", "bogus", "2024-03-02"})
        assert.False(t, flags.ConsecutiveRun)
    })
}
