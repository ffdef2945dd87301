package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/table-reservation/internal/api/http/handlers"
	"github.com/spec-kit/table-reservation/internal/auth"
	"github.com/spec-kit/table-reservation/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health            *handlers.HealthHandler
	Reservations      *handlers.ReservationsHandler
	AdminReservations *handlers.AdminReservationsHandler
	AuthMiddleware    *auth.AuthMiddleware
	// RateLimit runs after authentication; nil disables it.
	RateLimit fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	reservations := app.Group("/reservations", protectedChain(cfg)...)
	reservations.Post("/", cfg.Reservations.Create)
	reservations.Get("/", cfg.Reservations.List)
	reservations.Get("/:id", cfg.Reservations.Get)
	reservations.Post("/:id/cancel", cfg.Reservations.Cancel)

	admin := app.Group("/admin", append(protectedChain(cfg), auth.RequireRole(domain.RoleAdmin))...)
	admin.Get("/reservations", cfg.AdminReservations.List)
	admin.Patch("/reservations/:id", cfg.AdminReservations.Update)
	admin.Delete("/reservations/:id", cfg.AdminReservations.Delete)
}

func protectedChain(cfg RouteConfig) []fiber.Handler {
	chain := []fiber.Handler{cfg.AuthMiddleware.Handle}
	if cfg.RateLimit != nil {
		chain = append(chain, cfg.RateLimit)
	}
	return chain
}
