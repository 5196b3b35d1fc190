package model

import "time"

// ForgivenessGrant records a single authorized token spend in the
// `forgiveness_grants` table.  The row is inserted in the same
// transaction as the token decrement and the forgiven completion, so
// counting grants since local midnight gives an exact figure for the
// daily usage cap even under concurrent requests.
//
// Fields:
//  ID          – primary key identifier.
//  UserID      – user whose token was spent.
//  HabitID     – habit the forgiven day belongs to.
//  ForgivenOn  – the calendar day marked complete ("YYYY-MM-DD").
//  GrantedAt   – server instant of the grant, stored in UTC.
type ForgivenessGrant struct {
    ID         uint64    // forgiveness_grants.id
    UserID     uint64    // forgiveness_grants.user_id
    HabitID    uint64    // forgiveness_grants.habit_id
    ForgivenOn string    // forgiveness_grants.forgiven_on (DATE)
    GrantedAt  time.Time // forgiveness_grants.granted_at
}

// DailyForgivenessLimit caps how many forgiveness grants a user may
// receive per local calendar day, across all habits.
const DailyForgivenessLimit = 3

// ForgivenessWindowDays bounds how far back a forgiveness request may
// reach: the day must be strictly in the past and at most this many
// days old.
const ForgivenessWindowDays = 7
