package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/events"
	"github.com/spec-kit/helpdesk-workflow/internal/lock"
	"github.com/spec-kit/helpdesk-workflow/internal/observability"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

// WorkflowService is the ticket workflow engine. Every mutation holds the
// ticket lock and runs in one transaction; notifications go out after commit.
type WorkflowService struct {
	unit       ticketUnit
	store      repository.Store
	graph      *StatusGraphService
	assignment *AssignmentService
	history    *HistoryRecorder
	directory  UserDirectory
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// WorkflowDependencies bundles collaborators for the engine.
type WorkflowDependencies struct {
	Store      repository.Store
	Locker     lock.TicketLocker
	Graph      *StatusGraphService
	Assignment *AssignmentService
	History    *HistoryRecorder
	Directory  UserDirectory
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewWorkflowService constructs the engine.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		unit:       ticketUnit{store: deps.Store, locker: deps.Locker},
		store:      deps.Store,
		graph:      deps.Graph,
		assignment: deps.Assignment,
		history:    deps.History,
		directory:  deps.Directory,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        now,
	}
}

// CreateTicketInput describes a new ticket.
type CreateTicketInput struct {
	TenantID    int64
	RequesterID int64
	Title       string
	Description string
	Priority    domain.TicketPriority
	IsPrivate   bool
	DueAt       *time.Time
	ReviewerID  *int64
	AssigneeIDs []int64
}

// TransitionInput describes a status change request.
type TransitionInput struct {
	TenantID    int64
	TicketID    int64
	ToStatusID  int64
	ActorID     int64
	Description string
}

// ReassignInput replaces the assignee chain.
type ReassignInput struct {
	TenantID int64
	TicketID int64
	UserIDs  []int64
	ActorID  int64
}

// CommentInput attaches a note to the audit trail.
type CommentInput struct {
	TenantID int64
	TicketID int64
	ActorID  int64
	Body     string
}

// CreateTicket places a ticket in the tenant's initial status with its chain.
func (s *WorkflowService) CreateTicket(ctx context.Context, input CreateTicketInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.IsValid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}
	if err := s.assignment.ValidateAssignees(ctx, input.TenantID, input.AssigneeIDs); err != nil {
		return nil, err
	}
	if input.ReviewerID != nil && s.directory != nil {
		if _, err := s.directory.Lookup(ctx, input.TenantID, []int64{*input.ReviewerID}); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	var ticket *domain.Ticket
	err := s.store.InTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		initial, err := s.graph.statusByRole(ctx, repos, input.TenantID, domain.RoleInitial)
		if err != nil {
			return err
		}
		t := &domain.Ticket{
			TenantID:    input.TenantID,
			CustomID:    generateTicketKey(),
			Title:       title,
			Description: strings.TrimSpace(input.Description),
			StatusID:    initial.ID,
			ReviewerID:  input.ReviewerID,
			RequesterID: input.RequesterID,
			Priority:    priority,
			IsPrivate:   input.IsPrivate,
			DueAt:       input.DueAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		head := input.AssigneeIDs[0]
		t.CurrentTargetUserID = &head
		if err := repos.Tickets.Create(ctx, t); err != nil {
			return fmt.Errorf("create ticket: %w", err)
		}
		if _, err := s.assignment.SetChain(ctx, repos, t, input.AssigneeIDs); err != nil {
			return err
		}
		toStatus := initial.ID
		if err := s.history.Record(ctx, repos.History, &domain.TicketUpdate{
			TenantID:       t.TenantID,
			TicketID:       t.ID,
			TicketCustomID: t.CustomID,
			PerformedByID:  input.RequesterID,
			Action:         domain.UpdateActionCreation,
			ToStatusID:     &toStatus,
			ToUserID:       t.CurrentTargetUserID,
			CreatedAt:      now,
		}); err != nil {
			return fmt.Errorf("record creation: %w", err)
		}
		ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket created",
		zap.Int64("tenant_id", ticket.TenantID),
		zap.Int64("ticket_id", ticket.ID),
		zap.String("custom_id", ticket.CustomID))
	s.publish(ctx, events.Event{
		Type:       events.EventTicketCreated,
		TenantID:   ticket.TenantID,
		TicketID:   ticket.ID,
		ActorID:    input.RequesterID,
		Recipients: recipients(input.RequesterID, ticket.CurrentTargetUserID),
		Payload: events.TicketCreatedPayload{
			Title:       ticket.Title,
			Priority:    string(ticket.Priority),
			AssigneeIDs: append([]int64{}, input.AssigneeIDs...),
		},
	}, ticket.CustomID)
	return ticket, nil
}

// GetTicket returns a ticket of the tenant.
func (s *WorkflowService) GetTicket(ctx context.Context, tenantID, ticketID int64) (*domain.Ticket, error) {
	return loadTicket(ctx, s.store.Repos(), tenantID, ticketID)
}

// ListTickets searches the tenant's tickets.
func (s *WorkflowService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return s.store.Repos().Tickets.List(ctx, filter)
}

type transitionOutcome struct {
	ticket *domain.Ticket
	from   *domain.TicketStatus
	to     *domain.TicketStatus
}

// Transition moves a ticket along a configured edge.
func (s *WorkflowService) Transition(ctx context.Context, input TransitionInput) (*domain.Ticket, error) {
	out, err := s.runTransition(ctx, input, func(ctx context.Context, repos repository.Repositories) (*domain.TicketStatus, error) {
		return s.graph.status(ctx, repos, input.TenantID, input.ToStatusID)
	}, nil)
	if err != nil {
		return nil, err
	}
	s.publishStatus(ctx, events.EventTicketStatusChanged, input.ActorID, out, "")
	return out.ticket, nil
}

// Cancel moves the ticket to the tenant's canceled status and stores the
// cancellation reason.
func (s *WorkflowService) Cancel(ctx context.Context, tenantID, ticketID, actorID int64, reason string) (*domain.Ticket, error) {
	return s.withReason(ctx, tenantID, ticketID, actorID, reason, domain.ReasonCancellation, events.EventTicketCanceled,
		func(ctx context.Context, repos repository.Repositories) (*domain.TicketStatus, error) {
			return s.graph.statusByRole(ctx, repos, tenantID, domain.RoleCanceled)
		})
}

// Reject moves the ticket to the tenant's rejected status and stores the
// disapproval reason.
func (s *WorkflowService) Reject(ctx context.Context, tenantID, ticketID, actorID int64, reason string) (*domain.Ticket, error) {
	return s.withReason(ctx, tenantID, ticketID, actorID, reason, domain.ReasonDisapproval, events.EventTicketRejected,
		func(ctx context.Context, repos repository.Repositories) (*domain.TicketStatus, error) {
			return s.graph.statusByRole(ctx, repos, tenantID, domain.RoleRejected)
		})
}

// RequestCorrection sends the ticket back to the returned status.
func (s *WorkflowService) RequestCorrection(ctx context.Context, tenantID, ticketID, actorID int64, reason string) (*domain.Ticket, error) {
	return s.withReason(ctx, tenantID, ticketID, actorID, reason, domain.ReasonCorrection, events.EventTicketCorrectionRequested,
		func(ctx context.Context, repos repository.Repositories) (*domain.TicketStatus, error) {
			return s.graph.statusByKey(ctx, repos, tenantID, domain.StatusKeyReturned)
		})
}

func (s *WorkflowService) withReason(ctx context.Context, tenantID, ticketID, actorID int64, reason string, kind domain.ReasonKind, eventType events.EventType, target statusResolver) (*domain.Ticket, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("reason required", map[string]any{"kind": kind})
	}
	input := TransitionInput{TenantID: tenantID, TicketID: ticketID, ActorID: actorID, Description: reason}
	record := &domain.TicketReason{TenantID: tenantID, TicketID: ticketID, Kind: kind, Reason: reason, CreatedByID: actorID}
	out, err := s.runTransition(ctx, input, target, record)
	if err != nil {
		return nil, err
	}
	s.publishStatus(ctx, eventType, actorID, out, reason)
	return out.ticket, nil
}

type statusResolver func(ctx context.Context, repos repository.Repositories) (*domain.TicketStatus, error)

func (s *WorkflowService) runTransition(ctx context.Context, input TransitionInput, target statusResolver, reason *domain.TicketReason) (*transitionOutcome, error) {
	var out *transitionOutcome
	err := s.unit.run(ctx, input.TicketID, func(ctx context.Context, repos repository.Repositories) error {
		ticket, err := loadTicket(ctx, repos, input.TenantID, input.TicketID)
		if err != nil {
			return err
		}
		from, err := s.graph.status(ctx, repos, input.TenantID, ticket.StatusID)
		if err != nil {
			return err
		}
		to, err := target(ctx, repos)
		if err != nil {
			return err
		}
		allowed, err := s.graph.allowed(ctx, repos, input.TenantID, from.ID, to.ID)
		if err != nil {
			return err
		}
		if !allowed {
			return apperrors.NewInvalidTransition(from.ID, to.ID)
		}

		now := s.now().UTC()
		dwell, err := s.dwellSeconds(ctx, repos, ticket, now)
		if err != nil {
			return err
		}

		next := ticket.Clone()
		sameStatus := from.ID == to.ID
		if !sameStatus {
			if err := next.ApplyRole(to.EffectiveRole(), now); err != nil {
				return err
			}
		}
		next.StatusID = to.ID
		next.UpdatedAt = now
		if err := repos.Tickets.UpdateWorkflow(ctx, next, ticket.Version); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return apperrors.NewStaleTicketVersion(ticket.ID)
			}
			return fmt.Errorf("update ticket: %w", err)
		}

		if reason != nil {
			reason.CreatedAt = now
			if err := repos.Reasons.Create(ctx, reason); err != nil {
				return fmt.Errorf("store reason: %w", err)
			}
		}

		action := domain.UpdateActionStatusChange
		if sameStatus {
			action = domain.UpdateActionUpdate
		}
		fromID, toID := from.ID, to.ID
		entry := &domain.TicketUpdate{
			TenantID:                next.TenantID,
			TicketID:                next.ID,
			TicketCustomID:          next.CustomID,
			PerformedByID:           input.ActorID,
			Action:                  action,
			FromStatusID:            &fromID,
			ToStatusID:              &toID,
			Description:             optString(input.Description),
			TimeSecondsInLastStatus: &dwell,
			CreatedAt:               now,
		}
		if err := s.history.Record(ctx, repos.History, entry); err != nil {
			return fmt.Errorf("record transition: %w", err)
		}
		out = &transitionOutcome{ticket: next, from: from, to: to}
		return nil
	})
	if err != nil {
		s.logRejected(input.TenantID, input.TicketID, "transition", err)
		return nil, err
	}
	s.metrics.RecordTransition(input.TenantID, out.from.ID, out.to.ID)
	s.logger.Info("ticket transitioned",
		zap.Int64("tenant_id", input.TenantID),
		zap.Int64("ticket_id", input.TicketID),
		zap.String("from", out.from.Key),
		zap.String("to", out.to.Key),
		zap.Int64("actor_id", input.ActorID))
	return out, nil
}

// dwellSeconds is the whole seconds since the ticket last entered a status,
// falling back to its creation time.
func (s *WorkflowService) dwellSeconds(ctx context.Context, repos repository.Repositories, ticket *domain.Ticket, now time.Time) (int64, error) {
	since, err := s.history.RecentStatusChangeTimestamp(ctx, repos.History, ticket.ID)
	if err != nil {
		return 0, fmt.Errorf("load dwell baseline: %w", err)
	}
	baseline := ticket.CreatedAt
	if since != nil {
		baseline = *since
	}
	secs := int64(now.Sub(baseline) / time.Second)
	if secs < 0 {
		secs = 0
	}
	return secs, nil
}

// Reassign replaces the assignee chain and records the head change.
func (s *WorkflowService) Reassign(ctx context.Context, input ReassignInput) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	var previous *int64
	var chain domain.AssignmentChain
	err := s.unit.run(ctx, input.TicketID, func(ctx context.Context, repos repository.Repositories) error {
		current, err := loadTicket(ctx, repos, input.TenantID, input.TicketID)
		if err != nil {
			return err
		}
		next := current.Clone()
		previous = current.CurrentTargetUserID
		chain, err = s.assignment.SetChain(ctx, repos, next, input.UserIDs)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if err := s.recordHeadChange(ctx, repos, current, next, input.ActorID, now); err != nil {
			return err
		}
		ticket = next
		return nil
	})
	if err != nil {
		s.logRejected(input.TenantID, input.TicketID, "reassign", err)
		return nil, err
	}
	s.logger.Info("ticket reassigned",
		zap.Int64("tenant_id", input.TenantID),
		zap.Int64("ticket_id", input.TicketID),
		zap.Int64s("chain", chain.UserIDs()))
	s.publishAssigned(ctx, ticket, input.ActorID, previous, chain.UserIDs())
	return ticket, nil
}

// Advance hands the ticket to the next user of its chain.
func (s *WorkflowService) Advance(ctx context.Context, tenantID, ticketID, actorID int64) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	var previous *int64
	var chainIDs []int64
	err := s.unit.run(ctx, ticketID, func(ctx context.Context, repos repository.Repositories) error {
		current, err := loadTicket(ctx, repos, tenantID, ticketID)
		if err != nil {
			return err
		}
		if current.CurrentTargetUserID == nil {
			return apperrors.NewConflict("assignment chain exhausted", map[string]any{"ticket_id": ticketID})
		}
		next := current.Clone()
		previous = current.CurrentTargetUserID
		now := s.now().UTC()
		if _, err := s.assignment.Advance(ctx, repos, next, now); err != nil {
			return err
		}
		if err := s.recordHeadChange(ctx, repos, current, next, actorID, now); err != nil {
			return err
		}
		chain, err := repos.Chains.ListByTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		chainIDs = chain.UserIDs()
		ticket = next
		return nil
	})
	if err != nil {
		s.logRejected(tenantID, ticketID, "advance", err)
		return nil, err
	}
	s.publishAssigned(ctx, ticket, actorID, previous, chainIDs)
	return ticket, nil
}

// recordHeadChange persists next with a version check and appends an
// assignee_change entry carrying both heads and their departments.
func (s *WorkflowService) recordHeadChange(ctx context.Context, repos repository.Repositories, current, next *domain.Ticket, actorID int64, now time.Time) error {
	next.UpdatedAt = now
	if err := repos.Tickets.UpdateWorkflow(ctx, next, current.Version); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return apperrors.NewStaleTicketVersion(current.ID)
		}
		return fmt.Errorf("update ticket: %w", err)
	}
	var users map[int64]domain.DirectoryUser
	if s.directory != nil {
		var ids []int64
		for _, id := range []*int64{current.CurrentTargetUserID, next.CurrentTargetUserID} {
			if id != nil {
				ids = append(ids, *id)
			}
		}
		found, err := s.directory.Lookup(ctx, next.TenantID, ids)
		if err != nil {
			return err
		}
		users = found
	}
	entry := &domain.TicketUpdate{
		TenantID:         next.TenantID,
		TicketID:         next.ID,
		TicketCustomID:   next.CustomID,
		PerformedByID:    actorID,
		Action:           domain.UpdateActionAssigneeChange,
		FromUserID:       current.CurrentTargetUserID,
		ToUserID:         next.CurrentTargetUserID,
		FromDepartmentID: departmentOf(users, current.CurrentTargetUserID),
		ToDepartmentID:   departmentOf(users, next.CurrentTargetUserID),
		CreatedAt:        now,
	}
	if err := s.history.Record(ctx, repos.History, entry); err != nil {
		return fmt.Errorf("record assignee change: %w", err)
	}
	return nil
}

// Comment appends an update entry with body as description. The ticket row
// is not touched.
func (s *WorkflowService) Comment(ctx context.Context, input CommentInput) (*domain.TicketUpdate, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body required", nil)
	}
	var entry *domain.TicketUpdate
	var ticket *domain.Ticket
	err := s.unit.run(ctx, input.TicketID, func(ctx context.Context, repos repository.Repositories) error {
		t, err := loadTicket(ctx, repos, input.TenantID, input.TicketID)
		if err != nil {
			return err
		}
		e := &domain.TicketUpdate{
			TenantID:       t.TenantID,
			TicketID:       t.ID,
			TicketCustomID: t.CustomID,
			PerformedByID:  input.ActorID,
			Action:         domain.UpdateActionUpdate,
			Description:    &body,
			CreatedAt:      s.now().UTC(),
		}
		if err := s.history.Record(ctx, repos.History, e); err != nil {
			return fmt.Errorf("record comment: %w", err)
		}
		entry, ticket = e, t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{
		Type:       events.EventTicketCommented,
		TenantID:   ticket.TenantID,
		TicketID:   ticket.ID,
		ActorID:    input.ActorID,
		Recipients: recipients(input.ActorID, &ticket.RequesterID, ticket.CurrentTargetUserID),
		Payload:    events.TicketCommentedPayload{BodyPreview: stringPreview(body, 120)},
	}, ticket.CustomID)
	return entry, nil
}

// Reasons lists the justifications stored for a ticket.
func (s *WorkflowService) Reasons(ctx context.Context, tenantID, ticketID int64) ([]domain.TicketReason, error) {
	repos := s.store.Repos()
	if _, err := loadTicket(ctx, repos, tenantID, ticketID); err != nil {
		return nil, err
	}
	return repos.Reasons.ListByTicket(ctx, ticketID)
}

func (s *WorkflowService) logRejected(tenantID, ticketID int64, op string, err error) {
	domainErr := apperrors.ToDomainError(err)
	if domainErr.Code == apperrors.CodeInternal {
		s.logger.Error("workflow operation failed",
			zap.String("op", op),
			zap.Int64("tenant_id", tenantID),
			zap.Int64("ticket_id", ticketID),
			zap.Error(err))
		return
	}
	s.metrics.RecordConflict(domainErr.Code)
	s.logger.Warn("workflow operation rejected",
		zap.String("op", op),
		zap.Int64("tenant_id", tenantID),
		zap.Int64("ticket_id", ticketID),
		zap.String("code", domainErr.Code))
}

func (s *WorkflowService) publishStatus(ctx context.Context, eventType events.EventType, actorID int64, out *transitionOutcome, reason string) {
	s.publish(ctx, events.Event{
		Type:       eventType,
		TenantID:   out.ticket.TenantID,
		TicketID:   out.ticket.ID,
		ActorID:    actorID,
		Recipients: recipients(actorID, &out.ticket.RequesterID, out.ticket.CurrentTargetUserID),
		Payload: events.TicketStatusChangedPayload{
			FromStatusID:  out.from.ID,
			ToStatusID:    out.to.ID,
			FromStatusKey: out.from.Key,
			ToStatusKey:   out.to.Key,
			Reason:        reason,
		},
	}, out.ticket.CustomID)
}

func (s *WorkflowService) publishAssigned(ctx context.Context, ticket *domain.Ticket, actorID int64, previous *int64, chain []int64) {
	s.publish(ctx, events.Event{
		Type:       events.EventTicketAssigned,
		TenantID:   ticket.TenantID,
		TicketID:   ticket.ID,
		ActorID:    actorID,
		Recipients: recipients(actorID, ticket.CurrentTargetUserID),
		Payload: events.TicketAssignedPayload{
			FromUserID: previous,
			ToUserID:   ticket.CurrentTargetUserID,
			Chain:      chain,
		},
	}, ticket.CustomID)
}

func (s *WorkflowService) publish(ctx context.Context, event events.Event, customID string) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	event.TicketCustomID = customID
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("notification dispatch failed",
			zap.String("type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

// recipients collects distinct non-nil users, leaving out the actor.
func recipients(actorID int64, users ...*int64) []int64 {
	seen := map[int64]struct{}{actorID: {}}
	out := []int64{}
	for _, u := range users {
		if u == nil {
			continue
		}
		if _, dup := seen[*u]; dup {
			continue
		}
		seen[*u] = struct{}{}
		out = append(out, *u)
	}
	return out
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}

func optString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
