package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/profile-service/internal/api/http/handlers"
	"github.com/spec-kit/profile-service/internal/auth"
	"github.com/spec-kit/profile-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Auth           *handlers.AuthHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health", cfg.Health.Status)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)

	app.Post("/users", cfg.Users.Register)

	protected := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireScope(domain.ScopeBasic)}
	// /users/me must be registered before /users/:id.
	app.Get("/users/me", append(protected, cfg.Users.Me)...)
	app.Get("/users/:id", append(protected, cfg.Users.Get)...)
	app.Put("/users/:id", append(protected, cfg.Users.Update)...)
}
