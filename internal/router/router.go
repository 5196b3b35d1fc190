package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4" // import the Echo web framework to handle routing

    "github.com/iliyamo/habit-streak-service/internal/handler"    // import the handlers that implement business logic
    "github.com/iliyamo/habit-streak-service/internal/middleware" // import middleware for JWT authentication
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
    // Map the GET request at path "/healthz" to the Health handler.  This
    // endpoint can be used by load balancers or monitoring systems to verify
    // that the service is up and running.
    e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication‑related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
    // Create a route group under the /v1/auth prefix for operations that do
    // not require an existing session (register, login, refresh).  Each of
    // these handlers is responsible for generating or exchanging tokens.
    g := e.Group("/v1/auth")
    // Register a POST endpoint to handle user registration at /v1/auth/register.
    g.POST("/register", a.Register)
    // Register a POST endpoint to handle user login at /v1/auth/login.
    g.POST("/login", a.Login)
    // Register a POST endpoint to refresh access tokens at /v1/auth/refresh. This rotates the refresh token.
    g.POST("/refresh", a.Refresh)
    // Register a POST endpoint to log out using a refresh token.  The handler
    // accepts a JSON body containing a `refresh_token` and invalidates it, so
    // no JWT is required on this route.
    g.POST("/logout", a.Logout)

    // Create another group for routes that require a valid access token.  All
    // handlers registered on this group will execute the JWTAuth middleware
    // before being invoked.
    auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
    // Register a GET endpoint at /v1/me that returns the authenticated user's
    // profile together with the forgiveness token balance and level state.
    auth.GET("/me", a.Me)
}

// RegisterHabits registers the habit ledger endpoints under /v1.  All
// routes require a valid JWT; ownership of the addressed habit is
// enforced inside the handlers so 404 and 403 stay distinguishable.
// The optional extra middlewares (rate limiting, response caching) are
// applied to the whole group after JWT auth so cached entries are keyed
// by the authenticated user.
func RegisterHabits(e *echo.Echo, h *handler.HabitHandler, comp *handler.CompletionHandler, f *handler.ForgivenessHandler, jwtSecret string, extra ...echo.MiddlewareFunc) {
    mws := append([]echo.MiddlewareFunc{middleware.JWTAuth(jwtSecret)}, extra...)
    g := e.Group("/v1", mws...)

    // ---- Habits ----
    g.POST("/habits", h.Create)
    g.GET("/habits", h.List)
    g.GET("/habits/:id", h.Get)
    g.POST("/habits/:id/archive", h.Archive) // soft path: history and aggregates survive
    g.DELETE("/habits/:id", h.Delete)        // hard path: completions removed, XP refunded

    // ---- Ledger operations ----
    g.POST("/habits/:id/complete", comp.Complete)
    g.POST("/habits/:id/forgive", f.Forgive)
}

// RegisterStats registers the repair and validation endpoints under /v1.
func RegisterStats(e *echo.Echo, s *handler.StatsHandler, jwtSecret string, extra ...echo.MiddlewareFunc) {
    mws := append([]echo.MiddlewareFunc{middleware.JWTAuth(jwtSecret)}, extra...)
    g := e.Group("/v1/stats", mws...)

    // Rebuild every derived cache for the caller's habits from the ledger.
    g.POST("/recalculate", s.Recalculate)
    // Read‑only invariant audit over the caller's ledgers and caches.
    g.GET("/audit", s.Audit)
}
