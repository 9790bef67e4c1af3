package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/cache"
	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
)

const rollupPageSize = 500

// StatsService projects read-only analytics rows. It never writes workflow
// state and takes no ticket lock.
type StatsService struct {
	store     repository.Store
	directory UserDirectory
	cache     cache.StatsCache
	opts      domain.ProjectionOptions
	logger    *zap.Logger
	pageSize  int
}

// StatsDependencies bundles collaborators. Cache and Directory are optional.
type StatsDependencies struct {
	Store     repository.Store
	Directory UserDirectory
	Cache     cache.StatsCache
	Options   domain.ProjectionOptions
	Logger    *zap.Logger
}

// NewStatsService creates the service.
func NewStatsService(deps StatsDependencies) *StatsService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{
		store:     deps.Store,
		directory: deps.Directory,
		cache:     deps.Cache,
		opts:      deps.Options,
		logger:    logger,
		pageSize:  rollupPageSize,
	}
}

// Project returns the stats row of one ticket.
func (s *StatsService) Project(ctx context.Context, tenantID, ticketID int64) (*domain.StatsRow, error) {
	repos := s.store.Repos()
	ticket, err := loadTicket(ctx, repos, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		row, ok, err := s.cache.Get(ctx, ticket.ID, ticket.Version)
		if err != nil {
			s.logger.Warn("stats cache read failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		} else if ok {
			return row, nil
		}
	}

	chains, err := repos.Chains.ListByTickets(ctx, []int64{ticket.ID})
	if err != nil {
		return nil, err
	}
	statuses, err := s.statusesByID(ctx, repos, tenantID)
	if err != nil {
		return nil, err
	}
	departments, err := s.departments(ctx, tenantID, []domain.Ticket{*ticket}, chains)
	if err != nil {
		return nil, err
	}
	row := domain.ProjectStats(ticket, chains[ticket.ID], statuses[ticket.StatusID], departments, s.opts)

	if s.cache != nil {
		if err := s.cache.Set(ctx, row, ticket.Version); err != nil {
			s.logger.Warn("stats cache write failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	return &row, nil
}

// ProjectAll returns the stats rows of every ticket matching filter. The scan
// pages by id so tickets updated mid-scan are neither skipped nor repeated.
func (s *StatsService) ProjectAll(ctx context.Context, filter repository.TicketFilter) ([]domain.StatsRow, error) {
	repos := s.store.Repos()
	var tickets []domain.Ticket
	filter.Limit = s.pageSize
	filter.Offset = 0
	var cursor int64
	for {
		filter.AfterID = &cursor
		page, err := repos.Tickets.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list tickets: %w", err)
		}
		tickets = append(tickets, page...)
		if len(page) < s.pageSize {
			break
		}
		cursor = page[len(page)-1].ID
	}

	ids := make([]int64, 0, len(tickets))
	for _, t := range tickets {
		ids = append(ids, t.ID)
	}
	chains, err := repos.Chains.ListByTickets(ctx, ids)
	if err != nil {
		return nil, err
	}
	statuses, err := s.statusesByID(ctx, repos, filter.TenantID)
	if err != nil {
		return nil, err
	}
	departments, err := s.departments(ctx, filter.TenantID, tickets, chains)
	if err != nil {
		return nil, err
	}
	rows := make([]domain.StatsRow, 0, len(tickets))
	for i := range tickets {
		t := &tickets[i]
		rows = append(rows, domain.ProjectStats(t, chains[t.ID], statuses[t.StatusID], departments, s.opts))
	}
	return rows, nil
}

// Rollup aggregates the rows matching filter per department and assignee.
func (s *StatsService) Rollup(ctx context.Context, filter repository.TicketFilter) (domain.StatsRollup, error) {
	rows, err := s.ProjectAll(ctx, filter)
	if err != nil {
		return domain.StatsRollup{}, err
	}
	return domain.Rollup(rows), nil
}

func (s *StatsService) statusesByID(ctx context.Context, repos repository.Repositories, tenantID int64) (map[int64]domain.TicketStatus, error) {
	statuses, err := repos.Graph.ListStatuses(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]domain.TicketStatus, len(statuses))
	for _, st := range statuses {
		out[st.ID] = st
	}
	return out, nil
}

func (s *StatsService) departments(ctx context.Context, tenantID int64, tickets []domain.Ticket, chains map[int64]domain.AssignmentChain) (map[int64]int64, error) {
	if s.directory == nil {
		return map[int64]int64{}, nil
	}
	seen := map[int64]struct{}{}
	var ids []int64
	add := func(id int64) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, t := range tickets {
		for _, id := range chains[t.ID].UserIDs() {
			add(id)
		}
		if t.ReviewerID != nil {
			add(*t.ReviewerID)
		}
	}
	users, err := s.directory.Lookup(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	return departmentsOf(users), nil
}
