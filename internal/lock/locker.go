package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a ticket stays locked longer than the wait
// budget.
var ErrLockTimeout = errors.New("lock: timed out waiting for ticket")

// Release frees a held lock. It is safe to call more than once.
type Release func()

// TicketLocker serializes workflow writes per ticket. Distinct tickets never
// contend.
type TicketLocker interface {
	Acquire(ctx context.Context, ticketID int64) (Release, error)
}

const (
	keyPrefix    = "helpdesk:ticket-lock:"
	pollInterval = 25 * time.Millisecond
)

// compare-and-delete so a holder whose TTL lapsed cannot free a successor's lock
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RedisLocker holds per-ticket locks in Redis so several service instances
// share them.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisLocker creates a locker. ttl bounds how long a crashed holder keeps
// the ticket; wait bounds how long Acquire polls.
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, wait: wait}
}

func (l *RedisLocker) buildKey(ticketID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, ticketID)
}

// Acquire polls SET NX until it wins, the wait budget runs out or ctx ends.
func (l *RedisLocker) Acquire(ctx context.Context, ticketID int64) (Release, error) {
	key := l.buildKey(ticketID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire ticket lock: %w", err)
		}
		if acquired {
			var once sync.Once
			return func() {
				once.Do(func() {
					// the caller's ctx may already be done
					_ = releaseScript.Run(context.Background(), l.client, []string{key}, token).Err()
				})
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// LocalLocker is an in-process keyed mutex for single instance deployments.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[int64]*slot
	wait  time.Duration
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates a locker that waits at most wait for a busy ticket.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{slots: map[int64]*slot{}, wait: wait}
}

// Acquire blocks until the ticket is free, the wait budget runs out or ctx
// ends.
func (l *LocalLocker) Acquire(ctx context.Context, ticketID int64) (Release, error) {
	l.mu.Lock()
	s, ok := l.slots[ticketID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[ticketID] = s
	}
	s.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.unref(ticketID, s)
			})
		}, nil
	case <-timer.C:
		l.unref(ticketID, s)
		return nil, ErrLockTimeout
	case <-ctx.Done():
		l.unref(ticketID, s)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) unref(ticketID int64, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, ticketID)
	}
}
