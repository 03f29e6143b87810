package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/itsm-sla/internal/api/http/handlers"
	"github.com/spec-kit/itsm-sla/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health        *handlers.HealthHandler
	Tickets       *handlers.TicketsHandler
	SLA           *handlers.SLAHandler
	Assignment    *handlers.AssignmentHandler
	Users         *handlers.UsersHandler
	Notifications *handlers.NotificationsHandler
	Metrics       *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	tickets := app.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/history", cfg.Tickets.ListHistory)
	tickets.Patch("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Post("/:id/reassign", cfg.Assignment.Reassign)

	tickets.Get("/:id/sla", cfg.SLA.GetStatus)
	tickets.Post("/:id/sla/pause", cfg.SLA.Pause)
	tickets.Post("/:id/sla/resume", cfg.SLA.Resume)
	tickets.Post("/:id/sla/cancel", cfg.SLA.Cancel)
	tickets.Post("/:id/sla/response-met", cfg.SLA.MarkResponseMet)
	tickets.Post("/:id/sla/resolution-met", cfg.SLA.MarkResolutionMet)

	sla := app.Group("/sla")
	sla.Post("/sweeps/breaches", cfg.SLA.SweepBreaches)
	sla.Post("/sweeps/warnings", cfg.SLA.SweepWarnings)
	sla.Get("/definitions", cfg.SLA.ListDefinitions)
	sla.Post("/definitions", cfg.SLA.CreateDefinition)

	groups := app.Group("/assignment-groups")
	groups.Get("/", cfg.Assignment.ListGroups)
	groups.Post("/", cfg.Assignment.CreateGroup)
	groups.Get("/:id/workload", cfg.Assignment.Workload)
	groups.Post("/:id/members", cfg.Assignment.AddMember)

	app.Post("/category-mappings", cfg.Assignment.CreateMapping)
	app.Post("/users", cfg.Users.Create)
	app.Post("/notifications/process-pending", cfg.Notifications.ProcessPending)
}
