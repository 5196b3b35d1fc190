package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/habit-streak-service/internal/utils"
)

// User mirrors the 'users' table.
type User struct {
	ID                     uint64
	Email                  string
	PasswordHash           string
	Timezone               string
	ForgivenessTokens      int
	TotalXP                int64
	AutoForgivenessEnabled bool
	IsActive               bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

const userColumns = "id,email,password_hash,timezone,forgiveness_tokens,total_xp,auto_forgiveness_enabled,is_active,created_at,updated_at"

// Create inserts a user and returns its ID. New users start with a
// full token pool and auto-forgiveness enabled.
func (r *UserRepo) Create(ctx context.Context, email, password, timezone string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if timezone == "" {
		timezone = "UTC"
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, timezone, forgiveness_tokens, auto_forgiveness_enabled) VALUES (?,?,?,3,1)",
		email, hash, timezone)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Timezone, &u.ForgivenessTokens,
		&u.TotalXP, &u.AutoForgivenessEnabled, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (User, error) {
	var u User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Timezone, &u.ForgivenessTokens,
		&u.TotalXP, &u.AutoForgivenessEnabled, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// DecrementTokenTx spends one forgiveness token inside the given
// transaction. The balance guard lives in the WHERE clause, so the
// check and the decrement are a single atomic statement: when two
// requests race over the last token, only one UPDATE matches a row
// and the other receives ErrInsufficientTokens.
func (r *UserRepo) DecrementTokenTx(ctx context.Context, tx *sql.Tx, userID uint64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET forgiveness_tokens = forgiveness_tokens - 1 WHERE id=? AND forgiveness_tokens > 0",
		userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientTokens
	}
	return nil
}

// AddXPTx applies a signed delta to the cached total inside the given
// transaction and returns the new total. The caller must have already
// appended the matching xp_transactions rows in the same transaction
// so the cache never diverges from the ledger at commit.
func (r *UserRepo) AddXPTx(ctx context.Context, tx *sql.Tx, userID uint64, delta int64) (int64, error) {
	if _, err := tx.ExecContext(ctx,
		"UPDATE users SET total_xp = total_xp + ? WHERE id=?", delta, userID); err != nil {
		return 0, err
	}
	var total int64
	err := tx.QueryRowContext(ctx,
		"SELECT total_xp FROM users WHERE id=? LIMIT 1", userID).Scan(&total)
	return total, err
}

// TokensTx reads the current token balance inside a transaction with a
// row lock, serializing the forgiveness eligibility chain per user.
func (r *UserRepo) TokensTx(ctx context.Context, tx *sql.Tx, userID uint64) (int, error) {
	var tokens int
	err := tx.QueryRowContext(ctx,
		"SELECT forgiveness_tokens FROM users WHERE id=? FOR UPDATE", userID).Scan(&tokens)
	return tokens, err
}
