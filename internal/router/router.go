package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/streampass-platform/internal/handler"
    "github.com/iliyamo/streampass-platform/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
    // Load balancers and monitors probe this endpoint.
    e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies
// the necessary middleware.  Unauthenticated operations live under
// /v1/auth, while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
    g := e.Group("/v1/auth")
    g.POST("/register", a.Register)
    g.POST("/login", a.Login)
    // /refresh rotates the refresh token; /refresh-access issues a new
    // access token without rotating.
    g.POST("/refresh", a.Refresh)
    g.POST("/refresh-access", a.RefreshAccess)
    // Logout accepts either a refresh_token body (revoke one session) or
    // a bearer token with no body (revoke all), so it stays outside the
    // JWT middleware.
    g.POST("/logout", a.Logout)

    auth := e.Group("/v1")
    auth.Use(middleware.JWTAuth(jwtSecret))
    auth.Use(middleware.RequireRole("VIEWER", "ADMIN"))
    auth.GET("/me", a.Me)
}

// RegisterPublic registers the unauthenticated event catalogue.  The
// cache middleware wraps only these routes since they are the read-heavy
// surface during a sale rush.
func RegisterPublic(e *echo.Echo, p *handler.PublicEventHandler, cacheMW echo.MiddlewareFunc) {
    g := e.Group("/v1/events")
    if cacheMW != nil {
        g.Use(cacheMW)
    }
    g.GET("", p.List)
    g.GET("/:id", p.Get)
}

// RegisterStreampass registers the viewer endpoints: redemption, pass
// and gift listings, payment history, and the playback session
// lifecycle.  All of it requires a valid access token.
func RegisterStreampass(e *echo.Echo, s *handler.StreampassHandler, jwtSecret string, rateMW echo.MiddlewareFunc) {
    g := e.Group("/v1")
    g.Use(middleware.JWTAuth(jwtSecret))
    g.Use(middleware.RequireRole("VIEWER", "ADMIN"))
    if rateMW != nil {
        g.Use(rateMW)
    }

    g.POST("/streampass/redeem", s.Redeem)
    g.GET("/streampass", s.ListMine)
    g.GET("/gifts", s.ListGifts)
    g.GET("/transactions", s.ListTransactions)

    // Session lifecycle on a single pass.  Heartbeats carry the session
    // token in the body; a mismatch gets 401, a competing session 409.
    g.POST("/streampass/:public_id/session", s.BeginSession)
    g.PUT("/streampass/:public_id/session", s.Heartbeat)
    g.DELETE("/streampass/:public_id/session", s.EndSession)
}

// RegisterAdmin registers event lifecycle management and the operational
// session endpoints behind the ADMIN role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
    g := e.Group("/v1/admin")
    g.Use(middleware.JWTAuth(jwtSecret))
    g.Use(middleware.RequireRole("ADMIN"))

    g.POST("/events", a.CreateEvent)
    g.GET("/events", a.ListEvents)
    g.DELETE("/events/:id", a.DeleteEvent)

    g.POST("/sessions/cleanup", a.CleanupSessions)
    g.GET("/sessions/stats", a.SessionStats)
}
