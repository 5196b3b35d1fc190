package handler

// Ledger-level tests that need a real MySQL instance: the one-per-day
// unique index, the token balance CAS, the daily grant cap, XP ledger
// reconciliation and the recompute/audit endpoints are all storage
// behaviors that cannot be observed through the pure packages alone.
// The suite is skipped unless DB_HOST is set; point it (and DB_USER,
// DB_PASS, DB_PORT, DB_NAME) at a disposable database before running.

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/habit-streak-service/internal/audit"
	"github.com/iliyamo/habit-streak-service/internal/database"
	"github.com/iliyamo/habit-streak-service/internal/model"
	"github.com/iliyamo/habit-streak-service/internal/repository"
	"github.com/iliyamo/habit-streak-service/internal/streak"
)

type testEnv struct {
	db          *sql.DB
	users       *repository.UserRepo
	habits      *repository.HabitRepo
	completions *repository.CompletionRepo
	xp          *repository.XPRepo
	grants      *repository.ForgivenessRepo

	completionH  *CompletionHandler
	forgivenessH *ForgivenessHandler
	habitH       *HabitHandler
	statsH       *StatsHandler

	e *echo.Echo
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		timezone VARCHAR(64) NOT NULL DEFAULT 'UTC',
		forgiveness_tokens INT NOT NULL DEFAULT 3,
		total_xp BIGINT NOT NULL DEFAULT 0,
		auto_forgiveness_enabled TINYINT(1) NOT NULL DEFAULT 1,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS habits (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		name VARCHAR(255) NOT NULL,
		frequency VARCHAR(10) NOT NULL,
		days_of_week VARCHAR(32) NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		current_streak INT NOT NULL DEFAULT 0,
		longest_streak INT NOT NULL DEFAULT 0,
		total_completions INT NOT NULL DEFAULT 0,
		consistency_rate INT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_habits_user (user_id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS completions (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		habit_id BIGINT UNSIGNED NOT NULL,
		user_id BIGINT UNSIGNED NOT NULL,
		completed_on DATE NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		xp_earned INT NOT NULL DEFAULT 0,
		forgiveness_used TINYINT(1) NOT NULL DEFAULT 0,
		edited TINYINT(1) NOT NULL DEFAULT 0,
		days_late INT NOT NULL DEFAULT 0,
		UNIQUE KEY uniq_habit_day (habit_id, completed_on),
		KEY idx_completions_user (user_id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS xp_transactions (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		habit_id BIGINT UNSIGNED NULL,
		amount BIGINT NOT NULL,
		source VARCHAR(32) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_xp_user (user_id),
		KEY idx_xp_habit (habit_id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS forgiveness_grants (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		habit_id BIGINT UNSIGNED NOT NULL,
		forgiven_on DATE NOT NULL,
		granted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_grants_user_time (user_id, granted_at)
	) ENGINE=InnoDB`,
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if os.Getenv("DB_HOST") == "" {
		t.Skip("DB_HOST not set; skipping database tests")
	}
	db, err := database.Open(
		envOr("DB_USER", "root"),
		os.Getenv("DB_PASS"),
		os.Getenv("DB_HOST"),
		envOr("DB_PORT", "3306"),
		envOr("DB_NAME", "habit_streak_test"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	for _, ddl := range schema {
		_, err := db.Exec(ddl)
		require.NoError(t, err)
	}

	env := &testEnv{
		db:          db,
		users:       repository.NewUserRepo(db),
		habits:      repository.NewHabitRepo(db),
		completions: repository.NewCompletionRepo(db),
		xp:          repository.NewXPRepo(db),
		grants:      repository.NewForgivenessRepo(db),
		e:           echo.New(),
	}
	env.completionH = NewCompletionHandler(env.users, env.habits, env.completions, env.xp)
	env.forgivenessH = NewForgivenessHandler(env.users, env.habits, env.completions, env.xp, env.grants)
	env.habitH = NewHabitHandler(env.habits, env.completions, env.xp, env.users)
	env.statsH = NewStatsHandler(env.users, env.habits, env.completions,
		audit.New(env.users, env.habits, env.completions, env.xp))
	return env
}

func (env *testEnv) createUser(t *testing.T, tokens int) uint64 {
	t.Helper()
	email := fmt.Sprintf("user-%d@test.local", time.Now().UnixNano())
	uid, err := env.users.Create(context.Background(), email, "it-secret-pw", "UTC", 4)
	require.NoError(t, err)
	if tokens != 3 {
		_, err := env.db.Exec("UPDATE users SET forgiveness_tokens=? WHERE id=?", tokens, uid)
		require.NoError(t, err)
	}
	return uid
}

func (env *testEnv) createHabit(t *testing.T, uid uint64) uint64 {
	t.Helper()
	rec := repository.HabitRecord{UserID: uid, Name: "read", Frequency: model.FrequencyDaily, IsActive: true}
	require.NoError(t, env.habits.Create(context.Background(), &rec))
	return rec.ID
}

// call invokes an echo handler with an authenticated JSON request and
// returns the recorded response.
func (env *testEnv) call(h echo.HandlerFunc, uid, habitID uint64, body string) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)
	if habitID != 0 {
		c.SetParamNames("id")
		c.SetParamValues(strconv.FormatUint(habitID, 10))
	}
	c.Set("user_id", uid)
	return rec, h(c)
}

func utcDay(offset int) string {
	return time.Now().UTC().AddDate(0, 0, offset).Format(streak.DayFormat)
}

func completeBody(dayOffset int) string {
	return fmt.Sprintf(`{"day":%q,"timezone":"UTC"}`, utcDay(dayOffset))
}

func (env *testEnv) assertLedgerMatchesCache(t *testing.T, uid uint64) {
	t.Helper()
	u, err := env.users.GetByID(context.Background(), uid)
	require.NoError(t, err)
	sum, err := env.xp.SumByUser(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, sum, u.TotalXP, "cached total_xp must equal the ledger sum")
}

func TestCompletionUniqueness(t *testing.T) {
	env := newTestEnv(t)
	uid := env.createUser(t, 3)
	hid := env.createHabit(t, uid)

	t.Run("second identical request conflicts", func(t *testing.T) {
		rec, err := env.call(env.completionH.Complete, uid, hid, completeBody(0))
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)

		rec, err = env.call(env.completionH.Complete, uid, hid, completeBody(0))
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "already completed")
	})

	t.Run("storage translates the duplicate key", func(t *testing.T) {
		ctx := context.Background()
		insert := func() error {
			return database.WithTx(ctx, env.db, func(tx *sql.Tx) error {
				rec := repository.CompletionRecord{HabitID: hid, UserID: uid, CompletedOn: utcDay(-10), XPEarned: model.CompletionXP}
				return env.completions.InsertTx(ctx, tx, &rec)
			})
		}
		require.NoError(t, insert())
		assert.ErrorIs(t, insert(), repository.ErrDuplicateCompletion)
	})

	t.Run("concurrent identical requests produce one row", func(t *testing.T) {
		codes := make(chan int, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rec, err := env.call(env.completionH.Complete, uid, hid, completeBody(-20))
				if err != nil {
					codes <- 0
					return
				}
				codes <- rec.Code
			}()
		}
		wg.Wait()
		close(codes)
		got := map[int]int{}
		for code := range codes {
			got[code]++
		}
		assert.Equal(t, 1, got[http.StatusCreated])
		assert.Equal(t, 1, got[http.StatusConflict])

		var rows int
		require.NoError(t, env.db.QueryRow(
			"SELECT COUNT(*) FROM completions WHERE habit_id=? AND completed_on=?",
			hid, utcDay(-20)).Scan(&rows))
		assert.Equal(t, 1, rows)
	})
}

func TestForgivenessTokenBound(t *testing.T) {
	env := newTestEnv(t)

	t.Run("racing the last token spends it once", func(t *testing.T) {
		uid := env.createUser(t, 1)
		hid := env.createHabit(t, uid)

		codes := make(chan int, 2)
		var wg sync.WaitGroup
		for _, offset := range []int{-1, -2} {
			wg.Add(1)
			go func(offset int) {
				defer wg.Done()
				rec, err := env.call(env.forgivenessH.Forgive, uid, hid, completeBody(offset))
				if err != nil {
					codes <- 0
					return
				}
				codes <- rec.Code
			}(offset)
		}
		wg.Wait()
		close(codes)
		got := map[int]int{}
		for code := range codes {
			got[code]++
		}
		assert.Equal(t, 1, got[http.StatusCreated])
		assert.Equal(t, 1, got[http.StatusUnprocessableEntity])

		u, err := env.users.GetByID(context.Background(), uid)
		require.NoError(t, err)
		assert.Equal(t, 0, u.ForgivenessTokens, "balance must land on zero, never below")
	})

	t.Run("decrement at zero balance", func(t *testing.T) {
		uid := env.createUser(t, 0)
		err := database.WithTx(context.Background(), env.db, func(tx *sql.Tx) error {
			return env.users.DecrementTokenTx(context.Background(), tx, uid)
		})
		assert.ErrorIs(t, err, repository.ErrInsufficientTokens)
	})
}

func TestDailyForgivenessCap(t *testing.T) {
	env := newTestEnv(t)
	// A balance above the cap isolates the cap check from the balance check.
	uid := env.createUser(t, 5)
	hid := env.createHabit(t, uid)

	for _, offset := range []int{-1, -2, -3} {
		rec, err := env.call(env.forgivenessH.Forgive, uid, hid, completeBody(offset))
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec, err := env.call(env.forgivenessH.Forgive, uid, hid, completeBody(-4))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "daily forgiveness limit")

	u, err := env.users.GetByID(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, 2, u.ForgivenessTokens, "the capped attempt must not spend a token")
}

func TestXPLedgerReconciliation(t *testing.T) {
	env := newTestEnv(t)
	uid := env.createUser(t, 3)
	habitA := env.createHabit(t, uid)
	habitB := env.createHabit(t, uid)

	for _, offset := range []int{0, -1} {
		rec, err := env.call(env.completionH.Complete, uid, habitA, completeBody(offset))
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, rec.Code)
		env.assertLedgerMatchesCache(t, uid)
	}

	rec, err := env.call(env.forgivenessH.Forgive, uid, habitA, completeBody(-3))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, rec.Code)
	env.assertLedgerMatchesCache(t, uid)

	rec, err = env.call(env.completionH.Complete, uid, habitB, completeBody(0))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, rec.Code)
	env.assertLedgerMatchesCache(t, uid)

	// Deleting habit A refunds its whole contribution in one row.
	rec, err = env.call(env.habitH.Delete, uid, habitA, "")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)
	env.assertLedgerMatchesCache(t, uid)

	var netA int64
	require.NoError(t, env.db.QueryRow(
		"SELECT COALESCE(SUM(amount),0) FROM xp_transactions WHERE habit_id=?",
		habitA).Scan(&netA))
	assert.Equal(t, int64(0), netA, "refund must exactly negate the habit's awards")
}

func TestRecalculateAndAudit(t *testing.T) {
	env := newTestEnv(t)
	uid := env.createUser(t, 3)
	hid := env.createHabit(t, uid)

	for _, offset := range []int{0, -1, -2} {
		rec, err := env.call(env.completionH.Complete, uid, hid, completeBody(offset))
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	corrupt := func() {
		_, err := env.db.Exec(
			"UPDATE habits SET current_streak=99, longest_streak=0, total_completions=0, consistency_rate=0 WHERE id=?", hid)
		require.NoError(t, err)
	}

	t.Run("audit reports corrupted caches", func(t *testing.T) {
		corrupt()
		rec, err := env.call(env.statsH.Audit, uid, 0, "")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "aggregate_cache")
		assert.Contains(t, rec.Body.String(), "UTC") // names the recompute zone
	})

	t.Run("recalculate repairs and is idempotent", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			rec, err := env.call(env.statsH.Recalculate, uid, 0, "")
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, rec.Code)

			h, err := env.habits.GetByIDForUser(context.Background(), hid, uid)
			require.NoError(t, err)
			assert.Equal(t, 3, h.CurrentStreak)
			assert.Equal(t, 3, h.LongestStreak)
			assert.Equal(t, 3, h.TotalCompletions)
			assert.Equal(t, 100, h.ConsistencyRate)
		}
	})

	t.Run("audit is clean after repair", func(t *testing.T) {
		rec, err := env.call(env.statsH.Audit, uid, 0, "")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"consistent":true`)
	})
}
