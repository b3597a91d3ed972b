package router // package router wires HTTP routes to handlers and middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/crmdesk/crmdesk/internal/config"
	"github.com/crmdesk/crmdesk/internal/guard"
	"github.com/crmdesk/crmdesk/internal/handler"
	"github.com/crmdesk/crmdesk/internal/middleware"
	"github.com/crmdesk/crmdesk/internal/repository"
)

// RegisterRoutes registers routes that need no authentication. Currently
// that is only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the session lifecycle endpoints. Login is rate
// limited; logout deliberately sits outside the JWT middleware so a
// client holding only a refresh token can still end its session.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, g *guard.Guard, rdb *redis.Client) {
	pub := e.Group("/v1/auth")
	pub.POST("/login", a.Login, middleware.NewLoginLimiter(config.LoadRateLimitConfig(), rdb))
	pub.POST("/refresh", a.Refresh)
	pub.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(a.Cfg.JWTSecret))
	auth.Use(middleware.RequireRole(repository.RoleAdmin, repository.RoleUser))
	auth.Use(middleware.RequireSession(g))
	auth.GET("/me", a.Me)
}

// RegisterCustomers registers the customer CRUD endpoints. Any active
// session may manage customers.
func RegisterCustomers(e *echo.Echo, h *handler.CustomerHandler, g *guard.Guard, jwtSecret string) {
	grp := e.Group("/v1/customers")
	grp.Use(middleware.JWTAuth(jwtSecret))
	grp.Use(middleware.RequireSession(g))
	grp.GET("", h.List)
	grp.POST("", h.Create)
	grp.GET("/:id", h.Get)
	grp.PUT("/:id", h.Update)
	grp.DELETE("/:id", h.Delete)
}

// RegisterUsers registers the user management endpoints. The admin
// requirement is enforced by the guard with a fresh profile lookup on
// every request, not by the token's cached role claim.
func RegisterUsers(e *echo.Echo, h *handler.UserHandler, g *guard.Guard, jwtSecret string) {
	grp := e.Group("/v1/users")
	grp.Use(middleware.JWTAuth(jwtSecret))
	grp.Use(middleware.RequireAdmin(g))
	grp.GET("", h.List)
	grp.POST("", h.Create)
	grp.GET("/:id", h.Get)
	grp.PUT("/:id", h.Update)
	grp.DELETE("/:id", h.Delete)
}
