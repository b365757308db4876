package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Auth     *handlers.AuthHandler
	Accounts *handlers.AccountsHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	api := app.Group("/api")
	api.Post("/login", cfg.Auth.Login)
	api.Post("/register", cfg.Auth.Register)

	users := api.Group("/users")
	users.Get("/", cfg.Accounts.List)
	users.Post("/", cfg.Accounts.Create)
	users.Get("/stats", cfg.Accounts.Stats)
	users.Post("/:username/approve", cfg.Accounts.Approve)
	users.Post("/:username/revoke", cfg.Accounts.Revoke)
	users.Post("/:username/restore", cfg.Accounts.Restore)
	users.Delete("/:username", cfg.Accounts.Delete)
}
