package model

import "time"

// User represents an application user record as stored in the
// `users` table. Each field corresponds to a column in the
// database. The json tags are omitted here because these structs
// are primarily used internally by the repository layer; handlers
// define separate response types with appropriate JSON tags.
//
// ForgivenessTokens is a scarce per-user resource capped at
// MaxForgivenessTokens. TotalXP caches the running sum of the
// xp_transactions ledger; Level is always derived from TotalXP and
// never treated as ground truth.
//
// Fields:
//  ID                     – primary key identifier of the user.
//  Email                  – unique email address.
//  PasswordHash           – bcrypt hashed password.
//  Timezone               – IANA timezone name used as a fallback when
//                           requests omit one (e.g. "Europe/Berlin").
//  ForgivenessTokens      – remaining forgiveness tokens, 0..3.
//  TotalXP                – cached sum of the user's XP ledger.
//  AutoForgivenessEnabled – whether periodic token grants apply to
//                           this user (grant policy lives outside
//                           this service).
//  IsActive               – whether the account is active.
//  CreatedAt              – timestamp of creation.
//  UpdatedAt              – timestamp of last update.
type User struct {
    ID                     uint64    // users.id
    Email                  string    // users.email
    PasswordHash           string    // users.password_hash
    Timezone               string    // users.timezone
    ForgivenessTokens      int       // users.forgiveness_tokens
    TotalXP                int64     // users.total_xp
    AutoForgivenessEnabled bool      // users.auto_forgiveness_enabled
    IsActive               bool      // users.is_active
    CreatedAt              time.Time // users.created_at
    UpdatedAt              time.Time // users.updated_at
}

// MaxForgivenessTokens is the upper bound of the per-user token pool.
// The balance must stay inside [0, MaxForgivenessTokens] at all times.
const MaxForgivenessTokens = 3

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its
// SHA‑256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA‑256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
