package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-workflow/internal/api/dto"
	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
	"github.com/spec-kit/helpdesk-workflow/internal/service"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

// TicketsHandler manages ticket workflow endpoints.
type TicketsHandler struct {
	workflow   *service.WorkflowService
	assignment *service.AssignmentService
	history    *service.HistoryRecorder
	retry      RetryPolicy
}

// TicketsDependencies bundles collaborators.
type TicketsDependencies struct {
	Workflow   *service.WorkflowService
	Assignment *service.AssignmentService
	History    *service.HistoryRecorder
	Retry      RetryPolicy
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(deps TicketsDependencies) *TicketsHandler {
	return &TicketsHandler{
		workflow:   deps.Workflow,
		assignment: deps.Assignment,
		history:    deps.History,
		retry:      deps.Retry,
	}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.workflow.CreateTicket(c.UserContext(), service.CreateTicketInput{
		TenantID:    actor.TenantID,
		RequesterID: actor.UserID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.TicketPriority(req.Priority),
		IsPrivate:   req.IsPrivate,
		DueAt:       req.DueAt,
		ReviewerID:  req.ReviewerID,
		AssigneeIDs: req.AssigneeIDs,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketFilter(c, actor.TenantID)
	if err != nil {
		return err
	}
	tickets, err := h.workflow.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticketID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.workflow.GetTicket(c.UserContext(), actor.TenantID, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Transition POST /tickets/:id/transition.
func (h *TicketsHandler) Transition(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticketID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	return h.mutate(c, func(ctx context.Context) (*domain.Ticket, error) {
		return h.workflow.Transition(ctx, service.TransitionInput{
			TenantID:    actor.TenantID,
			TicketID:    ticketID,
			ToStatusID:  req.ToStatusID,
			ActorID:     actor.UserID,
			Description: req.Description,
		})
	})
}

// Cancel POST /tickets/:id/cancel.
func (h *TicketsHandler) Cancel(c *fiber.Ctx) error {
	return h.withReason(c, h.workflow.Cancel)
}

// Reject POST /tickets/:id/reject.
func (h *TicketsHandler) Reject(c *fiber.Ctx) error {
	return h.withReason(c, h.workflow.Reject)
}

// RequestCorrection POST /tickets/:id/correction.
func (h *TicketsHandler) RequestCorrection(c *fiber.Ctx) error {
	return h.withReason(c, h.workflow.RequestCorrection)
}

type reasonOp func(ctx context.Context, tenantID, ticketID, actorID int64, reason string) (*domain.Ticket, error)

func (h *TicketsHandler) withReason(c *fiber.Ctx, op reasonOp) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticketID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.ReasonRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	return h.mutate(c, func(ctx context.Context) (*domain.Ticket, error) {
		return op(ctx, actor.TenantID, ticketID, actor.UserID, req.Reason)
	})
}

// Comment POST /tickets/:id/comments.
func (h *TicketsHandler) Comment(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticketID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	var entry *domain.TicketUpdate
	err = h.retry.do(c.UserContext(), func(ctx context.Context) error {
		var opErr error
		entry, opErr = h.workflow.Comment(ctx, service.CommentInput{
			TenantID: actor.TenantID,
			TicketID: ticketID,
			ActorID:  actor.UserID,
			Body:     req.Body,
		})
		return opErr
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewHistoryEntryResponse(*entry)})
}

// Assignees GET /tickets/:id/assignees.
func (h *TicketsHandler) Assignees(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticketID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	chain, err := h.assignment.Chain(c.UserContext(), actor.TenantID, ticketID)
	if err != nil {
		return err
	}
	current, err := h.assignment.CurrentAssignee(c.UserContext(), actor.TenantID, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewChainResponse(chain),
		"meta": fiber.Map{"current_user_id": current},
	})
}

// Reassign PUT /tickets/:id/assignees.
func (h *TicketsHandler) Reassign(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticketID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.AssigneesRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	return h.mutate(c, func(ctx context.Context) (*domain.Ticket, error) {
		return h.workflow.Reassign(ctx, service.ReassignInput{
			TenantID: actor.TenantID,
			TicketID: ticketID,
			UserIDs:  req.UserIDs,
			ActorID:  actor.UserID,
		})
	})
}

// Advance POST /tickets/:id/assignees/advance.
func (h *TicketsHandler) Advance(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticketID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	return h.mutate(c, func(ctx context.Context) (*domain.Ticket, error) {
		return h.workflow.Advance(ctx, actor.TenantID, ticketID, actor.UserID)
	})
}

// History GET /tickets/:id/history. With ?verify=true the digest chain is
// checked before the rows are returned.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticketID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if c.QueryBool("verify", false) {
		if err := h.history.Verify(c.UserContext(), actor.TenantID, ticketID); err != nil {
			return err
		}
		if err := h.history.Reconcile(c.UserContext(), actor.TenantID, ticketID); err != nil {
			return err
		}
	}
	entries, err := h.history.List(c.UserContext(), actor.TenantID, ticketID)
	if err != nil {
		return err
	}
	items := make([]dto.HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewHistoryEntryResponse(entry))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Reasons GET /tickets/:id/reasons.
func (h *TicketsHandler) Reasons(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticketID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	reasons, err := h.workflow.Reasons(c.UserContext(), actor.TenantID, ticketID)
	if err != nil {
		return err
	}
	items := make([]dto.ReasonResponse, 0, len(reasons))
	for _, r := range reasons {
		items = append(items, dto.NewReasonResponse(r))
	}
	return c.JSON(fiber.Map{"data": items})
}

func (h *TicketsHandler) mutate(c *fiber.Ctx, op func(ctx context.Context) (*domain.Ticket, error)) error {
	var ticket *domain.Ticket
	err := h.retry.do(c.UserContext(), func(ctx context.Context) error {
		var opErr error
		ticket, opErr = op(ctx)
		return opErr
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

func parseTicketFilter(c *fiber.Ctx, tenantID int64) (repository.TicketFilter, error) {
	filter := repository.TicketFilter{
		TenantID: tenantID,
		Limit:    c.QueryInt("limit", 50),
		Offset:   c.QueryInt("offset", 0),
	}
	statusIDs, err := queryInt64s(c, "status_id")
	if err != nil {
		return filter, err
	}
	filter.StatusIDs = statusIDs

	if ids, err := queryInt64s(c, "assignee_id"); err != nil {
		return filter, err
	} else if len(ids) > 0 {
		filter.CurrentTargetUserID = &ids[0]
	}
	if ids, err := queryInt64s(c, "requester_id"); err != nil {
		return filter, err
	} else if len(ids) > 0 {
		filter.RequesterID = &ids[0]
	}

	if raw := c.Query("priority"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			p := domain.TicketPriority(strings.ToUpper(strings.TrimSpace(part)))
			if !p.IsValid() {
				return filter, apperrors.NewValidationError("invalid priority", map[string]any{"priority": part})
			}
			filter.Priorities = append(filter.Priorities, p)
		}
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		filter.SearchTerm = &q
	}
	for key, dst := range map[string]**time.Time{"created_from": &filter.CreatedFrom, "created_to": &filter.CreatedTo} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, apperrors.NewValidationError("invalid "+key, map[string]any{key: raw})
		}
		*dst = &t
	}
	return filter, nil
}
