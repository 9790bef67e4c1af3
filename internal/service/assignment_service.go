package service

import (
	"context"
	"fmt"
	"time"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
)

// AssignmentService handles a ticket's assignee chain. Mutations run inside
// the caller's transaction; the engine owns locking and history.
type AssignmentService struct {
	store     repository.Store
	directory UserDirectory
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Store     repository.Store
	Directory UserDirectory
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		store:     deps.Store,
		directory: deps.Directory,
	}
}

// ValidateAssignees checks chain shape and, when a directory is configured,
// that every user belongs to the tenant.
func (s *AssignmentService) ValidateAssignees(ctx context.Context, tenantID int64, userIDs []int64) error {
	if err := domain.ValidateChain(userIDs); err != nil {
		return err
	}
	if s.directory == nil {
		return nil
	}
	_, err := s.directory.Lookup(ctx, tenantID, userIDs)
	return err
}

// SetChain replaces the chain of ticket and updates CurrentTargetUserID on
// the passed ticket. Nothing is written when validation fails.
func (s *AssignmentService) SetChain(ctx context.Context, repos repository.Repositories, ticket *domain.Ticket, userIDs []int64) (domain.AssignmentChain, error) {
	if err := s.ValidateAssignees(ctx, ticket.TenantID, userIDs); err != nil {
		return nil, err
	}
	chain, err := domain.NewAssignmentChain(ticket.ID, userIDs)
	if err != nil {
		return nil, err
	}
	if err := repos.Chains.ReplaceChain(ctx, ticket.ID, chain); err != nil {
		return nil, fmt.Errorf("replace chain: %w", err)
	}
	ticket.CurrentTargetUserID = chain.Current()
	return chain, nil
}

// Advance consumes the current head and points ticket at the next one. It
// returns the new head, nil once the chain is exhausted.
func (s *AssignmentService) Advance(ctx context.Context, repos repository.Repositories, ticket *domain.Ticket, now time.Time) (*int64, error) {
	chain, err := repos.Chains.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	next, head := chain.Advance(now)
	if err := repos.Chains.ReplaceChain(ctx, ticket.ID, next); err != nil {
		return nil, fmt.Errorf("replace chain: %w", err)
	}
	ticket.CurrentTargetUserID = head
	return head, nil
}

// Chain returns the ordered chain of a ticket.
func (s *AssignmentService) Chain(ctx context.Context, tenantID, ticketID int64) (domain.AssignmentChain, error) {
	repos := s.store.Repos()
	if _, err := loadTicket(ctx, repos, tenantID, ticketID); err != nil {
		return nil, err
	}
	chain, err := repos.Chains.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return chain.Sorted(), nil
}

// CurrentAssignee returns the user at the lowest unconsumed order.
func (s *AssignmentService) CurrentAssignee(ctx context.Context, tenantID, ticketID int64) (*int64, error) {
	chain, err := s.Chain(ctx, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	return chain.Current(), nil
}
