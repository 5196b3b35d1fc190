package gamification

import (
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/habit-streak-service/internal/model"
)

func TestCompletionAwards(t *testing.T) {
    t.Run("base award only", func(t *testing.T) {
        awards := CompletionAwards(false, 3, false)
        require.Len(t, awards, 1)
        assert.Equal(t, int64(model.CompletionXP), awards[0].Amount)
        assert.Equal(t, model.XPSourceHabitCompletion, awards[0].Source)
    })

    t.Run("streak bonus at seven", func(t *testing.T) {
        awards := CompletionAwards(false, 7, false)
        require.Len(t, awards, 2)
        assert.Equal(t, model.XPSourceStreakBonus, awards[1].Source)
        assert.Equal(t, int64(5), awards[1].Amount)
    })

    t.Run("larger streak bonus replaces the smaller one", func(t *testing.T) {
        awards := CompletionAwards(false, 30, false)
        require.Len(t, awards, 2)
        assert.Equal(t, int64(10), awards[1].Amount)
        assert.Equal(t, int64(20), Total(awards))
    })

    t.Run("first completion bonus", func(t *testing.T) {
        awards := CompletionAwards(true, 1, false)
        require.Len(t, awards, 2)
        assert.Equal(t, model.XPSourceFirstCompletion, awards[1].Source)
        assert.Equal(t, int64(model.CompletionXP+model.FirstCompletionXP), Total(awards))
    })

    t.Run("perfect week bonus", func(t *testing.T) {
        awards := CompletionAwards(false, 7, true)
        require.Len(t, awards, 3)
        assert.Equal(t, model.XPSourcePerfectWeek, awards[2].Source)
        assert.Equal(t, int64(10+5+20), Total(awards))
    })
}

func TestForgivenessAward(t *testing.T) {
    awards := ForgivenessAward()
    require.Len(t, awards, 1)
    assert.Equal(t, int64(model.ForgivenessXP), awards[0].Amount)
    assert.Equal(t, model.XPSourceForgiveness, awards[0].Source)
}

func TestLevelForXP(t *testing.T) {
    tests := []struct {
        total int64
        level int
    }{
        {0, 1},
        {99, 1},
        {100, 2},
        {299, 2},
        {300, 3},
        {599, 3},
        {600, 4},
        {-50, 1},
    }
    for _, tt := range tests {
        assert.Equal(t, tt.level, LevelForXP(tt.total), "total=%d", tt.total)
    }
}

func TestXPToNextLevel(t *testing.T) {
    assert.Equal(t, int64(100), XPToNextLevel(0))
    assert.Equal(t, int64(1), XPToNextLevel(99))
    assert.Equal(t, int64(200), XPToNextLevel(100))
    assert.Equal(t, int64(300), XPToNextLevel(300))
}
