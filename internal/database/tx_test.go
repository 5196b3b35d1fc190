package database

import (
    "errors"
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
    t.Run("deadlock", func(t *testing.T) {
        err := errors.New("Error 1213: Deadlock found when trying to get lock; try restarting transaction")
        assert.True(t, IsTransient(err))
    })

    t.Run("lock wait timeout", func(t *testing.T) {
        err := errors.New("Error 1205: Lock wait timeout exceeded")
        assert.True(t, IsTransient(err))
    })

    t.Run("duplicate key is not transient", func(t *testing.T) {
        err := errors.New("Error 1062: Duplicate entry '7-2024-03-01' for key 'uniq_habit_day'")
        assert.False(t, IsTransient(err))
    })

    t.Run("nil", func(t *testing.T) {
        assert.False(t, IsTransient(nil))
    })
}
