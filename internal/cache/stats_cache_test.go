package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisStatsCache_RoundTripPerVersion(t *testing.T) {
	_, client := setupTestRedis(t)
	c := NewRedisStatsCache(client, time.Minute)
	ctx := context.Background()

	total := int64(7200)
	row := domain.StatsRow{
		TicketID:         9,
		TenantID:         1,
		StatusKey:        domain.StatusKeyCompleted,
		IsResolved:       true,
		TotalTimeSeconds: &total,
		DepartmentIDs:    []int64{3},
		TargetUserIDs:    []int64{10, 11},
	}
	require.NoError(t, c.Set(ctx, row, 4))

	got, ok, err := c.Get(ctx, 9, 4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, row, *got)

	_, ok, err = c.Get(ctx, 9, 5)
	require.NoError(t, err)
	assert.False(t, ok, "a newer version must miss")
}

func TestRedisStatsCache_Expires(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewRedisStatsCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, domain.StatsRow{TicketID: 1}, 1))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, 1, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
