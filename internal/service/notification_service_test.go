package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/helpdesk-workflow/internal/config"
	"github.com/spec-kit/helpdesk-workflow/internal/events"
)

func TestNewNotifier_SelectsSink(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()})
	defer client.Close()

	n, err := NewNotifier(config.NotificationConfig{}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LogNotifier{}, n)

	n, err = NewNotifier(config.NotificationConfig{Sink: "redis", Channel: "c"}, client, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &RedisNotifier{}, n)

	_, err = NewNotifier(config.NotificationConfig{Sink: "redis"}, nil, zap.NewNop())
	assert.ErrorContains(t, err, "REDIS_ADDR")

	_, err = NewNotifier(config.NotificationConfig{Sink: "smtp"}, nil, zap.NewNop())
	assert.ErrorContains(t, err, "smtp")
}

func TestRedisNotifier_PublishesJSON(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()
	ctx := context.Background()

	sub := client.Subscribe(ctx, "helpdesk:notifications")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	event := events.Event{
		ID:         "evt-1",
		Type:       events.EventTicketCanceled,
		TenantID:   1,
		TicketID:   42,
		Recipients: []int64{5, 10},
		Payload:    events.TicketStatusChangedPayload{FromStatusKey: "pending", ToStatusKey: "canceled", Reason: "dup"},
	}
	require.NoError(t, NewRedisNotifier(client, "helpdesk:notifications").Notify(ctx, event))

	select {
	case msg := <-sub.Channel():
		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "ticket_canceled", got["type"])
		assert.Equal(t, float64(42), got["ticket_id"])
		assert.Equal(t, "dup", got["payload"].(map[string]any)["reason"])
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}

func TestNotificationService_SkipsEventsWithoutRecipients(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, &LogNotifier{logger: zap.New(core)}, zap.NewNop()).RegisterHandlers()
	ctx := context.Background()

	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventTicketCommented}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventTicketAssigned, TicketID: 3, Recipients: []int64{11}}))

	entries := logs.FilterMessage("notification requested").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ticket_assigned", entries[0].ContextMap()["type"])
}
