package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/presence-service/internal/api/http/handlers"
	"github.com/spec-kit/presence-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health       *handlers.HealthHandler
	Auth         *handlers.AuthHandler
	SessionGuard *auth.SessionGuard
	UploadDir    string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
	}

	if cfg.UploadDir != "" {
		app.Static("/uploads", cfg.UploadDir)
	}

	authGroup := app.Group("/api/auth")
	authGroup.Post("/signup", cfg.Auth.Signup)
	authGroup.Post("/login", cfg.Auth.Login)

	protected := authGroup.Group("", cfg.SessionGuard.Handle)
	protected.Get("/check", cfg.Auth.Check)
	protected.Put("/update-profile", cfg.Auth.UpdateProfile)
}
