package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpticket-service/internal/api/http/handlers"
	"github.com/spec-kit/helpticket-service/internal/auth"
	"github.com/spec-kit/helpticket-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Tickets        *handlers.HelpTicketsHandler
	Config         *handlers.ConfigHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Snapshot)

	api := app.Group("/api/help-tickets", cfg.AuthMiddleware.Handle, auth.RequireActor())
	admin := auth.RequireRole(domain.EmployeeRoleAdmin)

	// Static segments must be registered before /:id.
	api.Get("/config", cfg.Config.GetConfig)
	api.Patch("/config", admin, cfg.Config.UpdateConfig)
	api.Get("/holidays", cfg.Config.ListHolidays)
	api.Post("/holidays", admin, cfg.Config.AddHoliday)
	api.Delete("/holidays/:id", admin, cfg.Config.RemoveHoliday)

	api.Post("/", cfg.Tickets.RaiseTicket)
	api.Get("/", cfg.Tickets.ListTickets)
	api.Get("/:id", cfg.Tickets.GetTicket)
	api.Get("/:id/history", cfg.Tickets.ListHistory)
	api.Post("/:id/pc-planning", cfg.Tickets.PCPlanning)
	api.Post("/:id/solve", cfg.Tickets.SolveTicket)
	api.Post("/:id/revise-date", cfg.Tickets.ReviseDate)
	api.Post("/:id/pc-confirmation", cfg.Tickets.PCConfirmation)
	api.Post("/:id/close", cfg.Tickets.CloseTicket)
	api.Post("/:id/reraise", cfg.Tickets.ReraiseTicket)
}
