package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/config"
	"github.com/spec-kit/helpdesk-workflow/internal/events"
)

// Notifier hands a notification request to the delivery system.
type Notifier interface {
	Notify(ctx context.Context, event events.Event) error
}

// NotificationService forwards workflow events to a Notifier.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   Notifier
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier Notifier, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
}

// NewNotifier picks the sink configured in cfg. The redis sink needs a client.
func NewNotifier(cfg config.NotificationConfig, client *redis.Client, logger *zap.Logger) (Notifier, error) {
	switch cfg.Sink {
	case "", "log":
		return &LogNotifier{logger: logger}, nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("notification sink redis requires REDIS_ADDR")
		}
		return NewRedisNotifier(client, cfg.Channel), nil
	default:
		return nil, fmt.Errorf("unknown notification sink %q", cfg.Sink)
	}
}

// RegisterHandlers subscribes to every workflow event.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil || n.notifier == nil {
		return
	}
	n.dispatcher.Subscribe(events.AnyEvent, n.handle)
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	if len(event.Recipients) == 0 {
		n.logger.Debug("notification without recipients", zap.String("type", string(event.Type)), zap.Int64("ticket_id", event.TicketID))
		return nil
	}
	if err := n.notifier.Notify(ctx, event); err != nil {
		n.logger.Warn("notification not accepted",
			zap.String("type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Error(err))
		return err
	}
	return nil
}

// LogNotifier writes notification requests to the log.
type LogNotifier struct {
	logger *zap.Logger
}

func (l *LogNotifier) Notify(_ context.Context, event events.Event) error {
	l.logger.Info("notification requested",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.Int64("tenant_id", event.TenantID),
		zap.Int64("ticket_id", event.TicketID),
		zap.Int64s("recipients", event.Recipients),
		zap.Any("payload", event.Payload))
	return nil
}

// RedisNotifier publishes notification requests as JSON on a pub/sub channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier creates a publisher on channel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (r *RedisNotifier) Notify(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
