package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-workflow/internal/api/dto"
	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/service"
)

// WorkflowHandler exposes the tenant status graph.
type WorkflowHandler struct {
	graph *service.StatusGraphService
}

// NewWorkflowHandler constructs handler.
func NewWorkflowHandler(graph *service.StatusGraphService) *WorkflowHandler {
	return &WorkflowHandler{graph: graph}
}

// ListColumns GET /workflow/columns. Pass ?all=true to include inactive
// columns.
func (h *WorkflowHandler) ListColumns(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	columns, err := h.graph.ListColumns(c.UserContext(), actor.TenantID, !c.QueryBool("all", false))
	if err != nil {
		return err
	}
	items := make([]dto.ColumnResponse, 0, len(columns))
	for _, col := range columns {
		items = append(items, dto.NewColumnResponse(col.Column, col.Statuses))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateColumn POST /workflow/columns.
func (h *WorkflowHandler) CreateColumn(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateColumnRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	col, err := h.graph.CreateColumn(c.UserContext(), actor.TenantID, req.Name, req.IsDisableable)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewColumnResponse(*col, nil)})
}

// SetColumnActive PATCH /workflow/columns/:id.
func (h *WorkflowHandler) SetColumnActive(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	columnID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.SetColumnActiveRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	col, err := h.graph.SetColumnActive(c.UserContext(), actor.TenantID, columnID, *req.Active)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewColumnResponse(*col, nil)})
}

// CreateStatus POST /workflow/statuses.
func (h *WorkflowHandler) CreateStatus(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	status, err := h.graph.CreateStatus(c.UserContext(), service.StatusInput{
		TenantID: actor.TenantID,
		ColumnID: req.ColumnID,
		Key:      req.Key,
		Name:     req.Name,
		Role:     domain.StatusRole(req.Role),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewStatusResponse(*status)})
}

// RenameStatus PATCH /workflow/statuses/:id.
func (h *WorkflowHandler) RenameStatus(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	statusID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.RenameStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	status, err := h.graph.RenameStatus(c.UserContext(), actor.TenantID, statusID, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStatusResponse(*status)})
}

// ListActions GET /workflow/statuses/:id/actions lists outgoing edges.
func (h *WorkflowHandler) ListActions(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	statusID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	actions, err := h.graph.Outgoing(c.UserContext(), actor.TenantID, statusID)
	if err != nil {
		return err
	}
	items := make([]dto.ActionResponse, 0, len(actions))
	for _, action := range actions {
		items = append(items, dto.NewActionResponse(action))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CheckTransition GET /workflow/statuses/:id/transitions/:to.
func (h *WorkflowHandler) CheckTransition(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	fromID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	toID, err := paramID(c, "to")
	if err != nil {
		return err
	}
	allowed, err := h.graph.IsTransitionAllowed(c.UserContext(), actor.TenantID, fromID, toID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"from_status_id": fromID,
		"to_status_id":   toID,
		"allowed":        allowed,
	}})
}

// CreateAction POST /workflow/actions.
func (h *WorkflowHandler) CreateAction(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateActionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	action, err := h.graph.CreateAction(c.UserContext(), service.ActionInput{
		TenantID:     actor.TenantID,
		FromStatusID: req.FromStatusID,
		ToStatusID:   req.ToStatusID,
		Title:        req.Title,
		Key:          req.Key,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewActionResponse(*action)})
}

// DeleteAction DELETE /workflow/actions/:id.
func (h *WorkflowHandler) DeleteAction(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	actionID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.graph.DeleteAction(c.UserContext(), actor.TenantID, actionID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Seed POST /workflow/seed installs the default workflow.
func (h *WorkflowHandler) Seed(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	seeded, err := h.graph.SeedDefaults(c.UserContext(), actor.TenantID)
	if err != nil {
		return err
	}
	status := fiber.StatusOK
	if seeded {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": fiber.Map{"seeded": seeded}})
}

// Export GET /workflow/definition returns the graph as YAML.
func (h *WorkflowHandler) Export(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	raw, err := h.graph.ExportDefinition(c.UserContext(), actor.TenantID)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/yaml")
	return c.Send(raw)
}

// Import PUT /workflow/definition merges a YAML definition.
func (h *WorkflowHandler) Import(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	if err := h.graph.ImportDefinition(c.UserContext(), actor.TenantID, c.Body()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
