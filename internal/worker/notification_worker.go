package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/events"
	"github.com/spec-kit/helpdesk-workflow/internal/service"
)

var (
	// ErrQueueFull is returned when the delivery backlog is at capacity.
	ErrQueueFull = errors.New("notification queue full")
	// ErrWorkerStopped is returned for requests offered after Stop.
	ErrWorkerStopped = errors.New("notification worker stopped")
)

// Options tunes the delivery loop.
type Options struct {
	QueueSize  int
	MaxRetries int
	Base       time.Duration
}

// DeliveryStats counts finished deliveries.
type DeliveryStats struct {
	Delivered uint64
	Dropped   uint64
}

// NotificationWorker decouples event publication from delivery. It
// implements service.Notifier so it can sit between the notification
// service and the configured sink: Notify only enqueues, a background
// goroutine hands each request to the sink with retries.
type NotificationWorker struct {
	sink   service.Notifier
	logger *zap.Logger
	opts   Options

	mu      sync.RWMutex
	stopped bool
	queue   chan events.Event
	wg      sync.WaitGroup

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewNotificationWorker creates a worker delivering to sink. Call Start
// before publishing.
func NewNotificationWorker(sink service.Notifier, logger *zap.Logger, opts Options) *NotificationWorker {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Base <= 0 {
		opts.Base = 100 * time.Millisecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		sink:   sink,
		logger: logger,
		opts:   opts,
		queue:  make(chan events.Event, opts.QueueSize),
	}
}

// Start launches the delivery loop. Deliveries use ctx, so callers that want
// Stop to drain the backlog should pass a context that outlives shutdown.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for event := range w.queue {
			w.deliver(ctx, event)
		}
	}()
}

// Notify enqueues event without blocking.
func (w *NotificationWorker) Notify(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrWorkerStopped
	}
	select {
	case w.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new requests, drains the backlog and waits for the loop to
// exit. It is safe to call more than once and on a nil worker.
func (w *NotificationWorker) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.queue)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// Stats reports how many requests were delivered or given up on.
func (w *NotificationWorker) Stats() DeliveryStats {
	return DeliveryStats{Delivered: w.delivered.Load(), Dropped: w.dropped.Load()}
}

func (w *NotificationWorker) deliver(ctx context.Context, event events.Event) {
	attempts := 0
	backoff := retry.WithMaxRetries(uint64(w.opts.MaxRetries), retry.NewExponential(w.opts.Base))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if err := w.sink.Notify(ctx, event); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		w.dropped.Add(1)
		w.logger.Error("notification dropped",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return
	}
	w.delivered.Add(1)
}
