package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

func seedTicket(t *testing.T, store *MemoryStore) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{TenantID: 1, CustomID: "TCK-1", Title: "VPN", StatusID: 1, CreatedAt: time.Now()}
	require.NoError(t, store.InTx(context.Background(), func(ctx context.Context, repos Repositories) error {
		return repos.Tickets.Create(ctx, ticket)
	}))
	return ticket
}

func TestMemoryStoreRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ticket := seedTicket(t, store)

	boom := errors.New("boom")
	err := store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		next := ticket.Clone()
		next.StatusID = 2
		if err := repos.Tickets.UpdateWorkflow(ctx, next, ticket.Version); err != nil {
			return err
		}
		if err := repos.History.Append(ctx, &domain.TicketUpdate{TicketID: ticket.ID, Sequence: 1, Action: domain.UpdateActionStatusChange}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	repos := store.Repos()
	current, err := repos.Tickets.GetByID(ctx, 1, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), current.StatusID)
	assert.Equal(t, int64(1), current.Version)
	history, err := repos.History.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMemoryStoreVersionCheck(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ticket := seedTicket(t, store)
	require.Equal(t, int64(1), ticket.Version)

	repos := store.Repos()
	next := ticket.Clone()
	next.StatusID = 3
	require.NoError(t, repos.Tickets.UpdateWorkflow(ctx, next, 1))
	assert.Equal(t, int64(2), next.Version)

	stale := ticket.Clone()
	stale.StatusID = 4
	assert.ErrorIs(t, repos.Tickets.UpdateWorkflow(ctx, stale, 1), ErrVersionConflict)

	_, err := repos.Tickets.GetByID(ctx, 2, ticket.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestMemoryStoreUniqueConstraints(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ticket := seedTicket(t, store)
	repos := store.Repos()

	dup := &domain.Ticket{TenantID: 1, CustomID: "TCK-1", Title: "again"}
	assert.ErrorIs(t, repos.Tickets.Create(ctx, dup), ErrDuplicate)

	require.NoError(t, repos.History.Append(ctx, &domain.TicketUpdate{TicketID: ticket.ID, Sequence: 1}))
	assert.ErrorIs(t, repos.History.Append(ctx, &domain.TicketUpdate{TicketID: ticket.ID, Sequence: 1}), ErrDuplicate)

	chain := domain.AssignmentChain{
		{TicketID: ticket.ID, UserID: 7, Order: 0},
		{TicketID: ticket.ID, UserID: 7, Order: 1},
	}
	assert.ErrorIs(t, repos.Chains.ReplaceChain(ctx, ticket.ID, chain), ErrDuplicate)

	col := &domain.StatusColumn{TenantID: 1, Name: "A", Index: 0}
	require.NoError(t, repos.Graph.CreateColumn(ctx, col))
	assert.ErrorIs(t, repos.Graph.CreateColumn(ctx, &domain.StatusColumn{TenantID: 1, Name: "B", Index: 0}), ErrDuplicate)
	require.NoError(t, repos.Graph.CreateColumn(ctx, &domain.StatusColumn{TenantID: 2, Name: "A", Index: 0}))
}

func TestMemoryHistoryLatestStatusEntry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ticket := seedTicket(t, store)
	repos := store.Repos()

	for i, action := range []domain.UpdateAction{
		domain.UpdateActionCreation,
		domain.UpdateActionStatusChange,
		domain.UpdateActionUpdate,
		domain.UpdateActionAssigneeChange,
	} {
		require.NoError(t, repos.History.Append(ctx, &domain.TicketUpdate{TicketID: ticket.ID, Sequence: int64(i + 1), Action: action}))
	}

	last, err := repos.History.Last(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), last.Sequence)

	status, err := repos.History.LatestStatusEntry(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), status.Sequence)

	none, err := repos.History.Last(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestMemoryDirectoryUpsert(t *testing.T) {
	ctx := context.Background()
	dept := int64(9)
	dir := NewMemoryDirectory(domain.DirectoryUser{ID: 1, TenantID: 1})
	require.NoError(t, dir.Upsert(ctx, domain.DirectoryUser{ID: 2, TenantID: 1, DepartmentID: &dept}))

	users, err := dir.Lookup(ctx, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, dept, *users[2].DepartmentID)
}

func TestMemoryGraphActionSlots(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repos := store.Repos()

	col := &domain.StatusColumn{TenantID: 1, Name: "A", Index: 0}
	require.NoError(t, repos.Graph.CreateColumn(ctx, col))
	pending := &domain.TicketStatus{TenantID: 1, Key: "pending", StatusColumnID: col.ID}
	working := &domain.TicketStatus{TenantID: 1, Key: "working", StatusColumnID: col.ID}
	require.NoError(t, repos.Graph.CreateStatus(ctx, pending))
	require.NoError(t, repos.Graph.CreateStatus(ctx, working))

	require.NoError(t, repos.Graph.CreateAction(ctx, &domain.StatusAction{TenantID: 1, FromStatusID: pending.ID, ToStatusID: &working.ID, Title: "Start"}))
	assert.ErrorIs(t, repos.Graph.CreateAction(ctx, &domain.StatusAction{TenantID: 1, FromStatusID: pending.ID, ToStatusID: &working.ID, Title: "Fast", Key: "fast"}), ErrDuplicate)

	require.NoError(t, repos.Graph.CreateAction(ctx, &domain.StatusAction{TenantID: 1, FromStatusID: pending.ID, Title: "Note", Key: "note"}))
	require.NoError(t, repos.Graph.CreateAction(ctx, &domain.StatusAction{TenantID: 1, FromStatusID: pending.ID, Title: "Ping", Key: "ping"}))
	assert.ErrorIs(t, repos.Graph.CreateAction(ctx, &domain.StatusAction{TenantID: 1, FromStatusID: pending.ID, Title: "Note", Key: "note"}), ErrDuplicate)

	actions, err := repos.Graph.ListActions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, actions, 3)
}

func TestMemoryTicketsKeysetPaging(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repos := store.Repos()
	base := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	var ids []int64
	for i := 0; i < 4; i++ {
		ticket := &domain.Ticket{TenantID: 1, CustomID: "TCK-" + string(rune('A'+i)), Title: "VPN", StatusID: 1, CreatedAt: base, UpdatedAt: base.Add(-time.Duration(i) * time.Minute)}
		require.NoError(t, repos.Tickets.Create(ctx, ticket))
		ids = append(ids, ticket.ID)
	}
	idsOf := func(tickets []domain.Ticket) []int64 {
		out := make([]int64, 0, len(tickets))
		for _, t := range tickets {
			out = append(out, t.ID)
		}
		return out
	}

	recent, err := repos.Tickets.List(ctx, TicketFilter{TenantID: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[0], ids[1]}, idsOf(recent))

	cursor := int64(0)
	first, err := repos.Tickets.List(ctx, TicketFilter{TenantID: 1, Limit: 2, Offset: 3, AfterID: &cursor})
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[0], ids[1]}, idsOf(first))

	cursor = ids[1]
	rest, err := repos.Tickets.List(ctx, TicketFilter{TenantID: 1, Limit: 2, AfterID: &cursor})
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[2], ids[3]}, idsOf(rest))

	cursor = ids[3]
	done, err := repos.Tickets.List(ctx, TicketFilter{TenantID: 1, Limit: 2, AfterID: &cursor})
	require.NoError(t, err)
	assert.Empty(t, done)
}
