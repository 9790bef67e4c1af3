package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// MemoryStore is a Store kept in process memory. Transactions work on a copy
// of the whole state that replaces the live state only when fn succeeds, and
// they are serialized.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
	now   func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState(), now: time.Now}
}

// Repos returns repositories that operate on the live state.
func (s *MemoryStore) Repos() Repositories {
	return s.bind(func(fn func(*memoryState) error) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(s.state)
	})
}

// InTx runs fn against a private copy and commits it on success.
func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	draft := s.state.clone()
	repos := s.bind(func(op func(*memoryState) error) error {
		return op(draft)
	})
	if err := fn(ctx, repos); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = draft
	return nil
}

func (s *MemoryStore) bind(access accessFunc) Repositories {
	return Repositories{
		Graph:   &memoryGraph{access: access, now: s.now},
		Tickets: &memoryTickets{access: access},
		Chains:  &memoryChains{access: access},
		History: &memoryHistory{access: access},
		Reasons: &memoryReasons{access: access},
	}
}

type accessFunc func(fn func(*memoryState) error) error

type memoryState struct {
	nextID   int64
	columns  map[int64]domain.StatusColumn
	statuses map[int64]domain.TicketStatus
	actions  map[int64]domain.StatusAction
	tickets  map[int64]*domain.Ticket
	chains   map[int64]domain.AssignmentChain
	updates  map[int64][]domain.TicketUpdate
	reasons  map[int64][]domain.TicketReason
}

func newMemoryState() *memoryState {
	return &memoryState{
		columns:  map[int64]domain.StatusColumn{},
		statuses: map[int64]domain.TicketStatus{},
		actions:  map[int64]domain.StatusAction{},
		tickets:  map[int64]*domain.Ticket{},
		chains:   map[int64]domain.AssignmentChain{},
		updates:  map[int64][]domain.TicketUpdate{},
		reasons:  map[int64][]domain.TicketReason{},
	}
}

func (m *memoryState) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryState) clone() *memoryState {
	c := newMemoryState()
	c.nextID = m.nextID
	for k, v := range m.columns {
		c.columns[k] = v
	}
	for k, v := range m.statuses {
		c.statuses[k] = v
	}
	for k, v := range m.actions {
		c.actions[k] = v
	}
	for k, v := range m.tickets {
		c.tickets[k] = v.Clone()
	}
	for k, v := range m.chains {
		c.chains[k] = append(domain.AssignmentChain(nil), v...)
	}
	for k, v := range m.updates {
		c.updates[k] = append([]domain.TicketUpdate(nil), v...)
	}
	for k, v := range m.reasons {
		c.reasons[k] = append([]domain.TicketReason(nil), v...)
	}
	return c
}

func duplicate(constraint string) error {
	return fmt.Errorf("%w: %s", ErrDuplicate, constraint)
}

type memoryGraph struct {
	access accessFunc
	now    func() time.Time
}

func (r *memoryGraph) CreateColumn(_ context.Context, col *domain.StatusColumn) error {
	return r.access(func(m *memoryState) error {
		for _, existing := range m.columns {
			if existing.TenantID == col.TenantID && existing.Index == col.Index {
				return duplicate("status_columns_tenant_id_column_index_key")
			}
		}
		col.ID = m.id()
		col.CreatedAt = r.now().UTC()
		m.columns[col.ID] = *col
		return nil
	})
}

func (r *memoryGraph) UpdateColumn(_ context.Context, col *domain.StatusColumn) error {
	return r.access(func(m *memoryState) error {
		existing, ok := m.columns[col.ID]
		if !ok || existing.TenantID != col.TenantID {
			return pgx.ErrNoRows
		}
		existing.Name = col.Name
		existing.Index = col.Index
		existing.IsActive = col.IsActive
		m.columns[col.ID] = existing
		return nil
	})
}

func (r *memoryGraph) GetColumn(_ context.Context, id int64) (*domain.StatusColumn, error) {
	var out *domain.StatusColumn
	err := r.access(func(m *memoryState) error {
		col, ok := m.columns[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = &col
		return nil
	})
	return out, err
}

func (r *memoryGraph) ListColumns(_ context.Context, tenantID int64) ([]domain.StatusColumn, error) {
	var out []domain.StatusColumn
	err := r.access(func(m *memoryState) error {
		for _, col := range m.columns {
			if col.TenantID == tenantID {
				out = append(out, col)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, err
}

func (r *memoryGraph) CreateStatus(_ context.Context, status *domain.TicketStatus) error {
	return r.access(func(m *memoryState) error {
		col, ok := m.columns[status.StatusColumnID]
		if !ok || col.TenantID != status.TenantID {
			return fmt.Errorf("ticket_statuses: column %d not found for tenant %d", status.StatusColumnID, status.TenantID)
		}
		for _, existing := range m.statuses {
			if existing.TenantID == status.TenantID && existing.Key == status.Key {
				return duplicate("ticket_statuses_tenant_id_status_key_key")
			}
		}
		status.ID = m.id()
		status.CreatedAt = r.now().UTC()
		m.statuses[status.ID] = *status
		return nil
	})
}

func (r *memoryGraph) UpdateStatus(_ context.Context, status *domain.TicketStatus) error {
	return r.access(func(m *memoryState) error {
		existing, ok := m.statuses[status.ID]
		if !ok || existing.TenantID != status.TenantID {
			return pgx.ErrNoRows
		}
		existing.Name = status.Name
		existing.StatusColumnID = status.StatusColumnID
		existing.Role = status.Role
		m.statuses[status.ID] = existing
		return nil
	})
}

func (r *memoryGraph) GetStatus(_ context.Context, id int64) (*domain.TicketStatus, error) {
	var out *domain.TicketStatus
	err := r.access(func(m *memoryState) error {
		status, ok := m.statuses[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = &status
		return nil
	})
	return out, err
}

func (r *memoryGraph) ListStatuses(_ context.Context, tenantID int64) ([]domain.TicketStatus, error) {
	var out []domain.TicketStatus
	err := r.access(func(m *memoryState) error {
		for _, status := range m.statuses {
			if status.TenantID == tenantID {
				out = append(out, status)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r *memoryGraph) CreateAction(_ context.Context, action *domain.StatusAction) error {
	return r.access(func(m *memoryState) error {
		for _, id := range []int64{action.FromStatusID, action.TargetStatusID()} {
			status, ok := m.statuses[id]
			if !ok || status.TenantID != action.TenantID {
				return fmt.Errorf("status_actions: status %d not found for tenant %d", id, action.TenantID)
			}
		}
		for _, existing := range m.actions {
			if !existing.SameSlot(*action) {
				continue
			}
			if action.ToStatusID != nil {
				return duplicate("status_actions_edge_uq")
			}
			return duplicate("status_actions_same_status_uq")
		}
		action.ID = m.id()
		action.CreatedAt = r.now().UTC()
		m.actions[action.ID] = *action
		return nil
	})
}

func (r *memoryGraph) GetAction(_ context.Context, id int64) (*domain.StatusAction, error) {
	var out *domain.StatusAction
	err := r.access(func(m *memoryState) error {
		action, ok := m.actions[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = &action
		return nil
	})
	return out, err
}

func (r *memoryGraph) DeleteAction(_ context.Context, tenantID, id int64) error {
	return r.access(func(m *memoryState) error {
		action, ok := m.actions[id]
		if !ok || action.TenantID != tenantID {
			return pgx.ErrNoRows
		}
		delete(m.actions, id)
		return nil
	})
}

func (r *memoryGraph) ListActions(_ context.Context, tenantID int64) ([]domain.StatusAction, error) {
	var out []domain.StatusAction
	err := r.access(func(m *memoryState) error {
		for _, action := range m.actions {
			if action.TenantID == tenantID {
				out = append(out, action)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

type memoryTickets struct {
	access accessFunc
}

func (r *memoryTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	return r.access(func(m *memoryState) error {
		for _, existing := range m.tickets {
			if existing.TenantID == ticket.TenantID && existing.CustomID == ticket.CustomID {
				return duplicate("tickets_tenant_id_custom_id_key")
			}
		}
		ticket.ID = m.id()
		ticket.Version = 1
		m.tickets[ticket.ID] = ticket.Clone()
		return nil
	})
}

func (r *memoryTickets) UpdateWorkflow(_ context.Context, ticket *domain.Ticket, expectedVersion int64) error {
	return r.access(func(m *memoryState) error {
		existing, ok := m.tickets[ticket.ID]
		if !ok || existing.TenantID != ticket.TenantID || existing.Version != expectedVersion {
			return ErrVersionConflict
		}
		next := existing.Clone()
		next.StatusID = ticket.StatusID
		next.CurrentTargetUserID = ticket.CurrentTargetUserID
		next.ReviewerID = ticket.ReviewerID
		next.AcceptedAt = ticket.AcceptedAt
		next.CompletedAt = ticket.CompletedAt
		next.CanceledAt = ticket.CanceledAt
		next.RejectedAt = ticket.RejectedAt
		next.UpdatedAt = ticket.UpdatedAt
		next.Version = existing.Version + 1
		m.tickets[ticket.ID] = next
		ticket.Version = next.Version
		return nil
	})
}

func (r *memoryTickets) GetByID(_ context.Context, tenantID, id int64) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.access(func(m *memoryState) error {
		ticket, ok := m.tickets[id]
		if !ok || ticket.TenantID != tenantID {
			return pgx.ErrNoRows
		}
		out = ticket.Clone()
		return nil
	})
	return out, err
}

func (r *memoryTickets) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	var out []domain.Ticket
	err := r.access(func(m *memoryState) error {
		for _, ticket := range m.tickets {
			if matchesFilter(ticket, filter) {
				out = append(out, *ticket.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if filter.AfterID != nil {
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		out = slices.DeleteFunc(out, func(t domain.Ticket) bool { return t.ID <= *filter.AfterID })
		offset = 0
	} else {
		sort.Slice(out, func(i, j int) bool {
			if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
				return out[i].UpdatedAt.After(out[j].UpdatedAt)
			}
			return out[i].ID > out[j].ID
		})
	}
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func matchesFilter(t *domain.Ticket, f TicketFilter) bool {
	if t.TenantID != f.TenantID {
		return false
	}
	if f.RequesterID != nil && t.RequesterID != *f.RequesterID {
		return false
	}
	if f.CurrentTargetUserID != nil && (t.CurrentTargetUserID == nil || *t.CurrentTargetUserID != *f.CurrentTargetUserID) {
		return false
	}
	if len(f.StatusIDs) > 0 && !containsInt64(f.StatusIDs, t.StatusID) {
		return false
	}
	if len(f.Priorities) > 0 {
		found := false
		for _, p := range f.Priorities {
			if p == t.Priority {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && t.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	if f.SearchTerm != nil && strings.TrimSpace(*f.SearchTerm) != "" {
		term := strings.ToLower(strings.TrimSpace(*f.SearchTerm))
		if !strings.Contains(strings.ToLower(t.Title), term) && !strings.Contains(strings.ToLower(t.Description), term) {
			return false
		}
	}
	return true
}

func containsInt64(values []int64, v int64) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

type memoryChains struct {
	access accessFunc
}

func (r *memoryChains) ReplaceChain(_ context.Context, ticketID int64, chain domain.AssignmentChain) error {
	return r.access(func(m *memoryState) error {
		if _, ok := m.tickets[ticketID]; !ok {
			return fmt.Errorf("ticket_target_users: ticket %d not found", ticketID)
		}
		seen := map[int64]struct{}{}
		orders := map[int]struct{}{}
		for _, entry := range chain {
			if _, dup := seen[entry.UserID]; dup {
				return duplicate("ticket_target_users_ticket_id_user_id_key")
			}
			if _, dup := orders[entry.Order]; dup {
				return duplicate("ticket_target_users_pkey")
			}
			seen[entry.UserID] = struct{}{}
			orders[entry.Order] = struct{}{}
		}
		m.chains[ticketID] = append(domain.AssignmentChain(nil), chain.Sorted()...)
		return nil
	})
}

func (r *memoryChains) ListByTicket(_ context.Context, ticketID int64) (domain.AssignmentChain, error) {
	var out domain.AssignmentChain
	err := r.access(func(m *memoryState) error {
		out = append(domain.AssignmentChain(nil), m.chains[ticketID]...)
		return nil
	})
	return out, err
}

func (r *memoryChains) ListByTickets(_ context.Context, ticketIDs []int64) (map[int64]domain.AssignmentChain, error) {
	out := make(map[int64]domain.AssignmentChain, len(ticketIDs))
	err := r.access(func(m *memoryState) error {
		for _, id := range ticketIDs {
			if chain, ok := m.chains[id]; ok {
				out[id] = append(domain.AssignmentChain(nil), chain...)
			}
		}
		return nil
	})
	return out, err
}

type memoryHistory struct {
	access accessFunc
}

func (r *memoryHistory) Append(_ context.Context, update *domain.TicketUpdate) error {
	return r.access(func(m *memoryState) error {
		if _, ok := m.tickets[update.TicketID]; !ok {
			return fmt.Errorf("ticket_updates: ticket %d not found", update.TicketID)
		}
		for _, existing := range m.updates[update.TicketID] {
			if existing.Sequence == update.Sequence {
				return duplicate("ticket_updates_ticket_id_sequence_key")
			}
		}
		update.ID = m.id()
		m.updates[update.TicketID] = append(m.updates[update.TicketID], *update)
		return nil
	})
}

func (r *memoryHistory) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketUpdate, error) {
	var out []domain.TicketUpdate
	err := r.access(func(m *memoryState) error {
		out = append(out, m.updates[ticketID]...)
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, err
}

func (r *memoryHistory) Last(ctx context.Context, ticketID int64) (*domain.TicketUpdate, error) {
	return r.latest(ctx, ticketID, func(domain.TicketUpdate) bool { return true })
}

func (r *memoryHistory) LatestStatusEntry(ctx context.Context, ticketID int64) (*domain.TicketUpdate, error) {
	return r.latest(ctx, ticketID, func(u domain.TicketUpdate) bool { return u.Action.EntersStatus() })
}

func (r *memoryHistory) latest(ctx context.Context, ticketID int64, match func(domain.TicketUpdate) bool) (*domain.TicketUpdate, error) {
	all, err := r.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	for i := len(all) - 1; i >= 0; i-- {
		if match(all[i]) {
			entry := all[i]
			return &entry, nil
		}
	}
	return nil, nil
}

type memoryReasons struct {
	access accessFunc
}

func (r *memoryReasons) Create(_ context.Context, reason *domain.TicketReason) error {
	return r.access(func(m *memoryState) error {
		reason.ID = m.id()
		m.reasons[reason.TicketID] = append(m.reasons[reason.TicketID], *reason)
		return nil
	})
}

func (r *memoryReasons) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketReason, error) {
	var out []domain.TicketReason
	err := r.access(func(m *memoryState) error {
		out = append(out, m.reasons[ticketID]...)
		return nil
	})
	return out, err
}

// MemoryDirectory is an in-process DirectoryRepository.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[int64]domain.DirectoryUser
}

// NewMemoryDirectory returns a directory holding users.
func NewMemoryDirectory(users ...domain.DirectoryUser) *MemoryDirectory {
	d := &MemoryDirectory{users: map[int64]domain.DirectoryUser{}}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *MemoryDirectory) Lookup(_ context.Context, ids []int64) (map[int64]domain.DirectoryUser, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[int64]domain.DirectoryUser, len(ids))
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (d *MemoryDirectory) Upsert(_ context.Context, user domain.DirectoryUser) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
	return nil
}
