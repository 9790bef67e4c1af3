package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryDispatcher_RoutesByType(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []EventType
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		got = append(got, e.Type)
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketCreated}))
	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketCanceled}))

	assert.Equal(t, []EventType{EventTicketCreated}, got)
}

func TestInMemoryDispatcher_JoinsHandlerErrors(t *testing.T) {
	d := NewInMemoryDispatcher()
	first := errors.New("first")
	second := errors.New("second")
	calls := 0
	d.Subscribe(EventTicketAssigned, func(context.Context, Event) error { calls++; return first })
	d.Subscribe(EventTicketAssigned, func(context.Context, Event) error { calls++; return second })

	err := d.Publish(context.Background(), Event{Type: EventTicketAssigned})

	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

func TestInMemoryDispatcher_WildcardSeesEveryType(t *testing.T) {
	d := NewInMemoryDispatcher()
	var order []string
	d.Subscribe(AnyEvent, func(_ context.Context, e Event) error {
		order = append(order, "any:"+string(e.Type))
		return nil
	})
	d.Subscribe(EventTicketCanceled, func(_ context.Context, e Event) error {
		order = append(order, "typed:"+string(e.Type))
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketCreated}))
	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketCanceled}))

	assert.Equal(t, []string{
		"any:ticket_created",
		"typed:ticket_canceled",
		"any:ticket_canceled",
	}, order)
}

func TestInMemoryDispatcher_PanicBecomesError(t *testing.T) {
	d := NewInMemoryDispatcher()
	reached := false
	d.Subscribe(EventTicketRejected, func(context.Context, Event) error { panic("boom") })
	d.Subscribe(EventTicketRejected, func(context.Context, Event) error { reached = true; return nil })

	err := d.Publish(context.Background(), Event{Type: EventTicketRejected})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ticket_rejected")
	assert.Contains(t, err.Error(), "boom")
	assert.True(t, reached)
}

func TestInMemoryDispatcher_IgnoresNilHandler(t *testing.T) {
	d := NewInMemoryDispatcher()
	d.Subscribe(EventTicketCreated, nil)
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketCreated}))
}
