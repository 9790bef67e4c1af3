package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/helpdesk-workflow/internal/events"
	"github.com/spec-kit/helpdesk-workflow/internal/service"
)

type flakySink struct {
	mu       sync.Mutex
	failures int
	calls    map[string]int
	got      []string
	block    chan struct{}
}

func newFlakySink(failures int) *flakySink {
	return &flakySink{failures: failures, calls: map[string]int{}}
}

func (s *flakySink) Notify(_ context.Context, e events.Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[e.ID]++
	if s.calls[e.ID] <= s.failures {
		return errors.New("sink unavailable")
	}
	s.got = append(s.got, e.ID)
	return nil
}

func (s *flakySink) delivered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

func TestNotificationWorker_DeliversInOrder(t *testing.T) {
	sink := newFlakySink(0)
	w := NewNotificationWorker(sink, zap.NewNop(), Options{QueueSize: 8, Base: time.Millisecond})
	w.Start(context.Background())

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, w.Notify(context.Background(), events.Event{ID: id}))
	}
	w.Stop()

	assert.Equal(t, []string{"a", "b", "c"}, sink.delivered())
	assert.Equal(t, DeliveryStats{Delivered: 3}, w.Stats())
}

func TestNotificationWorker_RetriesTransientFailures(t *testing.T) {
	sink := newFlakySink(2)
	w := NewNotificationWorker(sink, zap.NewNop(), Options{QueueSize: 1, MaxRetries: 2, Base: time.Millisecond})
	w.Start(context.Background())

	require.NoError(t, w.Notify(context.Background(), events.Event{ID: "a"}))
	w.Stop()

	assert.Equal(t, []string{"a"}, sink.delivered())
	assert.Equal(t, 3, sink.calls["a"])
}

func TestNotificationWorker_DropsAfterRetriesExhausted(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	sink := newFlakySink(10)
	w := NewNotificationWorker(sink, zap.New(core), Options{QueueSize: 1, MaxRetries: 1, Base: time.Millisecond})
	w.Start(context.Background())

	require.NoError(t, w.Notify(context.Background(), events.Event{ID: "a", Type: events.EventTicketCanceled, TicketID: 7}))
	w.Stop()

	assert.Empty(t, sink.delivered())
	assert.Equal(t, DeliveryStats{Dropped: 1}, w.Stats())
	entries := logs.FilterMessage("notification dropped").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(2), fields["attempts"])
	assert.Equal(t, "ticket_canceled", fields["type"])
}

func TestNotificationWorker_RejectsWhenFullOrStopped(t *testing.T) {
	sink := newFlakySink(0)
	sink.block = make(chan struct{})
	w := NewNotificationWorker(sink, zap.NewNop(), Options{QueueSize: 1, Base: time.Millisecond})

	// not started yet, so the single slot fills up
	require.NoError(t, w.Notify(context.Background(), events.Event{ID: "a"}))
	assert.ErrorIs(t, w.Notify(context.Background(), events.Event{ID: "b"}), ErrQueueFull)

	w.Start(context.Background())
	close(sink.block)
	w.Stop()
	w.Stop()

	assert.ErrorIs(t, w.Notify(context.Background(), events.Event{ID: "c"}), ErrWorkerStopped)
	assert.Equal(t, []string{"a"}, sink.delivered())
}

func TestNotificationWorker_BehindNotificationService(t *testing.T) {
	sink := newFlakySink(0)
	w := NewNotificationWorker(sink, zap.NewNop(), Options{QueueSize: 4, Base: time.Millisecond})
	w.Start(context.Background())

	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, w, zap.NewNop()).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{ID: "with", Type: events.EventTicketCreated, Recipients: []int64{10}}))
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{ID: "without", Type: events.EventTicketCommented}))
	w.Stop()

	assert.Equal(t, []string{"with"}, sink.delivered())
}

func TestNotificationWorker_StopOnNil(t *testing.T) {
	var w *NotificationWorker
	assert.NotPanics(t, w.Stop)
}
