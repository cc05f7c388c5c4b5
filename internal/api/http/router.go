package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/session-service/internal/api/http/handlers"
	"github.com/spec-kit/session-service/internal/auth"
	"github.com/spec-kit/session-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	Users  *handlers.UsersHandler
	Gate   *auth.Gate
}

// RegisterRoutes wires HTTP routes. The gate runs ahead of every route and
// lets allow-listed paths through unauthenticated.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Use(cfg.Gate.Handle)

	health := app.Group("/health")
	health.Get("/live", cfg.Health.Live)
	health.Get("/ready", cfg.Health.Ready)
	health.Get("/metrics", cfg.Health.Metrics)

	users := app.Group("/users")
	users.Post("", cfg.Users.Signup)
	users.Get("/check-username", cfg.Users.CheckUsername)
	users.Post("/login", cfg.Users.Login)
	users.Post("/refresh", cfg.Users.Refresh)

	protected := users.Group("", auth.RequireAuthenticated())
	protected.Post("/logout", cfg.Users.Logout)
	protected.Delete("/signout", cfg.Users.SignOut)
	protected.Get("/me", cfg.Users.Me)
	protected.Patch("/me", cfg.Users.UpdateMe)
	protected.Patch("/:username/role", auth.RequireRole(domain.RoleManager), cfg.Users.UpdateRole)
}
