package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/youth-governance-backend/internal/logger"
	"github.com/ignatzorin/youth-governance-backend/internal/metrics"
)

// Cache stores serialized values with a TTL. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	InvalidateByPrefix(ctx context.Context, prefix string) error
	Ping(ctx context.Context) error
}

// Dashboard cache keys. Every workflow transition drops the whole prefix.
const dashboardCachePrefix = "dashboard:"

func adminDashboardCacheKey() string {
	return dashboardCachePrefix + "admin"
}

func userDashboardCacheKey(userID uuid.UUID) string {
	return dashboardCachePrefix + "user:" + userID.String()
}

// MemoryCache is an in-process Cache with periodic cleanup of expired entries.
type MemoryCache struct {
	mu    sync.RWMutex
	cache map[string]*cacheEntry
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryCache creates the cache; the cleanup loop stops with ctx.
func NewMemoryCache(ctx context.Context) *MemoryCache {
	cs := &MemoryCache{cache: make(map[string]*cacheEntry)}
	go cs.cleanup(ctx, 5*time.Minute)
	return cs
}

func (cs *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	entry, exists := cs.cache[key]
	if !exists || time.Now().After(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.data, true, nil
}

func (cs *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.cache[key] = &cacheEntry{data: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (cs *MemoryCache) InvalidateByPrefix(_ context.Context, prefix string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for key := range cs.cache {
		if strings.HasPrefix(key, prefix) {
			delete(cs.cache, key)
		}
	}
	return nil
}

func (cs *MemoryCache) Ping(context.Context) error { return nil }

func (cs *MemoryCache) cleanup(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cs.mu.Lock()
			now := time.Now()
			for key, entry := range cs.cache {
				if now.After(entry.expiresAt) {
					delete(cs.cache, key)
				}
			}
			cs.mu.Unlock()
		}
	}
}

// getOrSetJSON returns the cached value of key or computes, caches and
// returns it. Cache failures degrade to computing the value.
func getOrSetJSON[T any](ctx context.Context, c Cache, m *metrics.Metrics, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if c != nil {
		raw, found, err := c.Get(ctx, key)
		if err != nil {
			logger.WithFields(logrus.Fields{"key": key}).Warnf("cache: get: %v", err)
		}
		if found {
			var cached T
			if err := json.Unmarshal(raw, &cached); err == nil {
				m.IncrementCacheLookup(true)
				return cached, nil
			}
		}
		m.IncrementCacheLookup(false)
	}

	value, err := fn(ctx)
	if err != nil {
		return value, err
	}

	if c != nil && ttl > 0 {
		if raw, err := json.Marshal(value); err == nil {
			if err := c.Set(ctx, key, raw, ttl); err != nil {
				logger.WithFields(logrus.Fields{"key": key}).Warnf("cache: set: %v", err)
			}
		}
	}
	return value, nil
}

// invalidateDashboards drops every cached dashboard.
func invalidateDashboards(ctx context.Context, c Cache) {
	if c == nil {
		return
	}
	if err := c.InvalidateByPrefix(ctx, dashboardCachePrefix); err != nil {
		logger.WithFields(logrus.Fields{"prefix": dashboardCachePrefix}).Warnf("cache: invalidate: %v", err)
	}
}
