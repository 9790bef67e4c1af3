package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/cache"
	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/events"
	"github.com/spec-kit/helpdesk-workflow/internal/lock"
	"github.com/spec-kit/helpdesk-workflow/internal/observability"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
)

const (
	tenantA int64 = 1
	tenantB int64 = 2

	requester int64 = 5
	agentOne  int64 = 10
	agentTwo  int64 = 11
	agentLead int64 = 12
	outsider  int64 = 20

	deptSupport int64 = 100
	deptOps     int64 = 200
	deptQA      int64 = 300
)

var t0 = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

func (d *recordingDispatcher) last() events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.events[len(d.events)-1]
}

type harness struct {
	ctx        context.Context
	store      *repository.MemoryStore
	directory  *repository.MemoryDirectory
	clock      *fakeClock
	dispatcher *recordingDispatcher
	metrics    *observability.Metrics
	graph      *StatusGraphService
	assignment *AssignmentService
	history    *HistoryRecorder
	workflow   *WorkflowService
	stats      *StatsService
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	memory     *repository.MemoryStore
	store      repository.Store
	statsCache cache.StatsCache
	opts       domain.ProjectionOptions
}

// withMemory sets the memory store the harness inspects directly.
func withMemory(memory *repository.MemoryStore) harnessOption {
	return func(c *harnessConfig) { c.memory = memory }
}

func withStore(store repository.Store) harnessOption {
	return func(c *harnessConfig) { c.store = store }
}

func withStatsCache(sc cache.StatsCache) harnessOption {
	return func(c *harnessConfig) { c.statsCache = sc }
}

func withProjection(opts domain.ProjectionOptions) harnessOption {
	return func(c *harnessConfig) { c.opts = opts }
}

// newHarness wires the engine over an in-memory store with tenants A and B
// seeded with the default workflow.
func newHarness(t *testing.T, options ...harnessOption) *harness {
	t.Helper()
	var cfg harnessConfig
	for _, opt := range options {
		opt(&cfg)
	}
	if cfg.memory == nil {
		cfg.memory = repository.NewMemoryStore()
	}
	if cfg.store == nil {
		cfg.store = cfg.memory
	}

	dept := func(v int64) *int64 { return &v }
	dir := repository.NewMemoryDirectory(
		domain.DirectoryUser{ID: requester, TenantID: tenantA},
		domain.DirectoryUser{ID: agentOne, TenantID: tenantA, DepartmentID: dept(deptSupport)},
		domain.DirectoryUser{ID: agentTwo, TenantID: tenantA, DepartmentID: dept(deptOps)},
		domain.DirectoryUser{ID: agentLead, TenantID: tenantA, DepartmentID: dept(deptQA)},
		domain.DirectoryUser{ID: outsider, TenantID: tenantB, DepartmentID: dept(deptSupport)},
	)
	users := NewUserDirectory(dir)
	clock := &fakeClock{now: t0}
	dispatcher := &recordingDispatcher{}
	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	h := &harness{
		ctx:        context.Background(),
		store:      cfg.memory,
		directory:  dir,
		clock:      clock,
		dispatcher: dispatcher,
		metrics:    metrics,
	}
	h.graph = NewStatusGraphService(cfg.store, logger)
	h.assignment = NewAssignmentService(AssignmentDependencies{Store: cfg.store, Directory: users})
	h.history = NewHistoryRecorder(cfg.store, clock.Now)
	h.workflow = NewWorkflowService(WorkflowDependencies{
		Store:      cfg.store,
		Locker:     lock.NewLocalLocker(time.Second),
		Graph:      h.graph,
		Assignment: h.assignment,
		History:    h.history,
		Directory:  users,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		Now:        clock.Now,
	})
	h.stats = NewStatsService(StatsDependencies{
		Store:     cfg.store,
		Directory: users,
		Cache:     cfg.statsCache,
		Options:   cfg.opts,
		Logger:    logger,
	})

	for _, tenant := range []int64{tenantA, tenantB} {
		seeded, err := h.graph.SeedDefaults(h.ctx, tenant)
		require.NoError(t, err)
		require.True(t, seeded)
	}
	return h
}

// status returns the id of a status key of tenant.
func (h *harness) status(t *testing.T, tenantID int64, key string) int64 {
	t.Helper()
	st, err := h.graph.statusByKey(h.ctx, h.store.Repos(), tenantID, key)
	require.NoError(t, err)
	return st.ID
}

func (h *harness) createTicket(t *testing.T, assignees ...int64) *domain.Ticket {
	t.Helper()
	ticket, err := h.workflow.CreateTicket(h.ctx, CreateTicketInput{
		TenantID:    tenantA,
		RequesterID: requester,
		Title:       "Printer on fire",
		Description: "third floor",
		AssigneeIDs: assignees,
	})
	require.NoError(t, err)
	return ticket
}

func (h *harness) move(t *testing.T, ticketID int64, key string) *domain.Ticket {
	t.Helper()
	ticket, err := h.workflow.Transition(h.ctx, TransitionInput{
		TenantID:   tenantA,
		TicketID:   ticketID,
		ToStatusID: h.status(t, tenantA, key),
		ActorID:    agentOne,
	})
	require.NoError(t, err)
	return ticket
}

func (h *harness) historyOf(t *testing.T, ticketID int64) []domain.TicketUpdate {
	t.Helper()
	entries, err := h.history.List(h.ctx, tenantA, ticketID)
	require.NoError(t, err)
	return entries
}
