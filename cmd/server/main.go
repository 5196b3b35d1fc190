package main // Entry point package

import (
    "log" // Logging library

    "github.com/joho/godotenv"    // Loads .env files into the environment
    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/iliyamo/habit-streak-service/internal/audit"      // Ledger invariant auditor
    "github.com/iliyamo/habit-streak-service/internal/config"     // Internal config loader
    "github.com/iliyamo/habit-streak-service/internal/database"   // MySQL connection helper
    "github.com/iliyamo/habit-streak-service/internal/handler"    // HTTP handlers
    "github.com/iliyamo/habit-streak-service/internal/middleware" // Rate limit + response cache
    "github.com/iliyamo/habit-streak-service/internal/queue"      // Event consumer
    "github.com/iliyamo/habit-streak-service/internal/repository" // Data access layer
    "github.com/iliyamo/habit-streak-service/internal/router"     // Route registration
)

func main() {
    _ = godotenv.Load() // Load .env when present; real env vars win

    cfg := config.Load() // Load environment config

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName) // Open MySQL
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    // Repositories share the single pooled handle.
    users := repository.NewUserRepo(db)
    tokens := repository.NewTokenRepo(db)
    habits := repository.NewHabitRepo(db)
    completions := repository.NewCompletionRepo(db)
    xp := repository.NewXPRepo(db)
    grants := repository.NewForgivenessRepo(db)

    // Handlers.
    authH := handler.NewAuthHandler(cfg, users, tokens)
    habitH := handler.NewHabitHandler(habits, completions, xp, users)
    compH := handler.NewCompletionHandler(users, habits, completions, xp)
    forgiveH := handler.NewForgivenessHandler(users, habits, completions, xp, grants)
    statsH := handler.NewStatsHandler(users, habits, completions, audit.New(users, habits, completions, xp))

    // Redis-backed middlewares. Disabled automatically when Redis is
    // unreachable or the feature flags are off.
    rdb := config.NewRedisClient()
    var extra []echo.MiddlewareFunc
    if rdb != nil {
        extra = append(extra,
            middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
            middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
        )
    }

    // Event consumer runs for the life of the process, reconnecting on
    // broker failures. The HTTP server does not depend on it.
    go func() {
        if err := queue.StartActivityConsumer(); err != nil {
            log.Printf("queue consumer stopped: %v", err)
        }
    }()

    e := echo.New() // Create Echo instance
    router.RegisterRoutes(e)
    router.RegisterAuth(e, authH, cfg.JWTSecret)
    router.RegisterHabits(e, habitH, compH, forgiveH, cfg.JWTSecret, extra...)
    router.RegisterStats(e, statsH, cfg.JWTSecret, extra...)

    addr := ":" + cfg.Port                                // Address string with port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

    if err := e.Start(addr); err != nil { // Start HTTP server
        log.Fatal(err) // Log and exit if server fails
    }
}
