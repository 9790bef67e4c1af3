package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

const statsKeyPrefix = "helpdesk:stats:"

// StatsCache stores projected stats rows keyed by ticket and version. A
// version bump yields a new key, so an entry is never stale for the version
// it was computed from.
type StatsCache interface {
	Get(ctx context.Context, ticketID, version int64) (*domain.StatsRow, bool, error)
	Set(ctx context.Context, row domain.StatsRow, version int64) error
}

// RedisStatsCache keeps rows as JSON strings with a TTL.
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatsCache creates a new RedisStatsCache instance.
func NewRedisStatsCache(client *redis.Client, ttl time.Duration) *RedisStatsCache {
	return &RedisStatsCache{client: client, ttl: ttl}
}

// buildKey format: helpdesk:stats:{ticket_id}:{version}
func (c *RedisStatsCache) buildKey(ticketID, version int64) string {
	return fmt.Sprintf("%s%d:%d", statsKeyPrefix, ticketID, version)
}

func (c *RedisStatsCache) Get(ctx context.Context, ticketID, version int64) (*domain.StatsRow, bool, error) {
	raw, err := c.client.Get(ctx, c.buildKey(ticketID, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read stats cache: %w", err)
	}
	var row domain.StatsRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, false, fmt.Errorf("failed to decode stats cache: %w", err)
	}
	return &row, true, nil
}

func (c *RedisStatsCache) Set(ctx context.Context, row domain.StatsRow, version int64) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode stats row: %w", err)
	}
	if err := c.client.Set(ctx, c.buildKey(row.TicketID, version), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write stats cache: %w", err)
	}
	return nil
}
