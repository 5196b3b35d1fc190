// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios and
// render a specific message for each: a duplicate completion is a
// deterministic outcome of the idempotency check, not a generic
// failure, and must reach the caller as such.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrHabitNotFound is returned when a habit does not exist or has
// been removed. Handlers translate this into a 404.
var ErrHabitNotFound = errors.New("habit not found")

// ErrHabitArchived is returned when a completion is attempted on an
// archived habit. Handlers translate this into a 409.
var ErrHabitArchived = errors.New("habit archived")

// ErrDuplicateCompletion is returned when a completion already exists
// for the same (habit, calendar day) pair. The storage layer's unique
// index raises this even when two identical requests race, so exactly
// one of them wins and the other receives this error.
var ErrDuplicateCompletion = errors.New("completion already exists for this day")

// ErrHabitNotEligible is returned when forgiveness is requested for a
// habit whose frequency is not DAILY.
var ErrHabitNotEligible = errors.New("habit not eligible for forgiveness")

// ErrForgivenessWindow is returned when the requested day falls
// outside the forgiveness window (today or future, or more than 7
// days in the past).
var ErrForgivenessWindow = errors.New("day outside forgiveness window")

// ErrInsufficientTokens is returned when the user's forgiveness token
// balance is zero at the moment of the atomic decrement.
var ErrInsufficientTokens = errors.New("no forgiveness tokens remaining")

// ErrDailyForgivenessLimit is returned when the user has already been
// granted the maximum number of forgiveness spends since local
// midnight, regardless of remaining balance.
var ErrDailyForgivenessLimit = errors.New("daily forgiveness limit reached")
