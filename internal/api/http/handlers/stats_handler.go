package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-workflow/internal/service"
)

// rollupTicketLimit caps how many tickets one rollup request aggregates.
const rollupTicketLimit = 10000

// StatsHandler serves the analytics projection.
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler constructs handler.
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Ticket GET /tickets/:id/stats.
func (h *StatsHandler) Ticket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticketID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	row, err := h.stats.Project(c.UserContext(), actor.TenantID, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": row})
}

// Rows GET /stats/tickets projects every ticket matching the list filters.
func (h *StatsHandler) Rows(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketFilter(c, actor.TenantID)
	if err != nil {
		return err
	}
	rows, err := h.stats.ProjectAll(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rows})
}

// Rollup GET /stats/rollup groups the projection by department and assignee.
func (h *StatsHandler) Rollup(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketFilter(c, actor.TenantID)
	if err != nil {
		return err
	}
	filter.Limit = rollupTicketLimit
	filter.Offset = 0
	rollup, err := h.stats.Rollup(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rollup})
}
