package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-workflow/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-workflow/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Workflow       *handlers.WorkflowHandler
	Tickets        *handlers.TicketsHandler
	Stats          *handlers.StatsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireActor())
	adminOnly := auth.RequireAdmin()
	protected.Get("/metrics", adminOnly, cfg.Health.Metrics)

	workflow := protected.Group("/workflow")
	workflow.Get("/columns", cfg.Workflow.ListColumns)
	workflow.Get("/statuses/:id/actions", cfg.Workflow.ListActions)
	workflow.Get("/statuses/:id/transitions/:to", cfg.Workflow.CheckTransition)
	workflow.Get("/definition", cfg.Workflow.Export)

	workflow.Post("/columns", adminOnly, cfg.Workflow.CreateColumn)
	workflow.Patch("/columns/:id", adminOnly, cfg.Workflow.SetColumnActive)
	workflow.Post("/statuses", adminOnly, cfg.Workflow.CreateStatus)
	workflow.Patch("/statuses/:id", adminOnly, cfg.Workflow.RenameStatus)
	workflow.Post("/actions", adminOnly, cfg.Workflow.CreateAction)
	workflow.Delete("/actions/:id", adminOnly, cfg.Workflow.DeleteAction)
	workflow.Post("/seed", adminOnly, cfg.Workflow.Seed)
	workflow.Put("/definition", adminOnly, cfg.Workflow.Import)

	tickets := protected.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/transition", cfg.Tickets.Transition)
	tickets.Post("/:id/cancel", cfg.Tickets.Cancel)
	tickets.Post("/:id/reject", cfg.Tickets.Reject)
	tickets.Post("/:id/correction", cfg.Tickets.RequestCorrection)
	tickets.Post("/:id/comments", cfg.Tickets.Comment)
	tickets.Get("/:id/assignees", cfg.Tickets.Assignees)
	tickets.Put("/:id/assignees", cfg.Tickets.Reassign)
	tickets.Post("/:id/assignees/advance", cfg.Tickets.Advance)
	tickets.Get("/:id/history", cfg.Tickets.History)
	tickets.Get("/:id/reasons", cfg.Tickets.Reasons)
	tickets.Get("/:id/stats", cfg.Stats.Ticket)

	stats := protected.Group("/stats")
	stats.Get("/tickets", cfg.Stats.Rows)
	stats.Get("/rollup", cfg.Stats.Rollup)
}
