package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_GetSetExpire(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := NewMemoryCache(ctx)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), -time.Second))

	got, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), got)

	_, ok, _ = c.Get(ctx, "b")
	assert.False(t, ok, "expired entry must not be returned")
}

func TestMemoryCache_InvalidateByPrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(ctx)

	userKey := userDashboardCacheKey(uuid.New())
	require.NoError(t, c.Set(ctx, adminDashboardCacheKey(), []byte("{}"), time.Minute))
	require.NoError(t, c.Set(ctx, userKey, []byte("{}"), time.Minute))
	require.NoError(t, c.Set(ctx, "committees", []byte("[]"), time.Minute))

	invalidateDashboards(ctx, c)

	_, ok, _ := c.Get(ctx, adminDashboardCacheKey())
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, userKey)
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "committees")
	assert.True(t, ok)
}

func TestGetOrSetJSON(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(ctx)

	type payload struct{ N int }
	calls := 0
	compute := func(context.Context) (payload, error) {
		calls++
		return payload{N: 42}, nil
	}

	first, err := getOrSetJSON(ctx, c, nil, "k", time.Minute, compute)
	require.NoError(t, err)
	second, err := getOrSetJSON(ctx, c, nil, "k", time.Minute, compute)
	require.NoError(t, err)

	assert.Equal(t, payload{N: 42}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	_, err = getOrSetJSON(ctx, c, nil, "err", time.Minute, func(context.Context) (payload, error) {
		return payload{}, errors.New("db down")
	})
	assert.Error(t, err)
	_, ok, _ := c.Get(ctx, "err")
	assert.False(t, ok, "errors must not be cached")
}

func TestGetOrSetJSON_NilCache(t *testing.T) {
	v, err := getOrSetJSON(context.Background(), nil, nil, "k", time.Minute, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
