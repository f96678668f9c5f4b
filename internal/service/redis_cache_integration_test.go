//go:build integration

package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newRedisCache(t *testing.T) *RedisCache {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	testcontainers.CleanupContainer(t, container)

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	c, err := NewRedisCache(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisCache_InvalidateByPrefix(t *testing.T) {
	c := newRedisCache(t)
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	// More keys than one SCAN batch.
	for i := 0; i < 450; i++ {
		require.NoError(t, c.Set(ctx, userDashboardCacheKey(uuid.New()), []byte("{}"), time.Minute))
	}
	require.NoError(t, c.Set(ctx, adminDashboardCacheKey(), []byte("{}"), time.Minute))
	require.NoError(t, c.Set(ctx, "committees", []byte("[]"), time.Minute))

	invalidateDashboards(ctx, c)

	_, ok, err := c.Get(ctx, adminDashboardCacheKey())
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := c.client.Keys(ctx, c.namespace+dashboardCachePrefix+"*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)

	got, ok, err := c.Get(ctx, "committees")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("[]"), got)
}

func TestRedisCache_GetOrSetJSON(t *testing.T) {
	c := newRedisCache(t)
	ctx := context.Background()

	calls := 0
	compute := func(context.Context) (map[string]int, error) {
		calls++
		return map[string]int{"pending": calls}, nil
	}
	key := fmt.Sprintf("%sintegration", dashboardCachePrefix)

	first, err := getOrSetJSON(ctx, c, nil, key, time.Minute, compute)
	require.NoError(t, err)
	second, err := getOrSetJSON(ctx, c, nil, key, time.Minute, compute)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}
