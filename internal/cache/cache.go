// SPDX-License-Identifier: MIT

// Package cache holds hub responses between catalog refreshes. Three
// backends share one interface: an in-process map with TTL, redis for
// multi-replica deployments, and a no-op for cache-disabled runs.
package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// DefaultCleanupInterval is how often the memory backend sweeps expired entries.
const DefaultCleanupInterval = 5 * time.Minute

// Cache is the backend-agnostic store. Values expire after their TTL;
// Get never returns an expired value even before the sweeper runs.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
	Clear()
	Stats() CacheStats
}

// CacheStats is a point-in-time snapshot of backend counters.
type CacheStats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Evictions   int64
	CurrentSize int
}

// New creates a cache for the configured backend.
func New(backend string, redisCfg RedisConfig, logger zerolog.Logger) (Cache, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryCache(DefaultCleanupInterval), nil
	case BackendRedis:
		return NewRedisCache(redisCfg, logger)
	case BackendNone:
		return NewNoOpCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %q", backend)
	}
}

// InfoKey returns the cache key for a repository's hub metadata.
func InfoKey(repoID string) string {
	return "hub:info:" + repoID
}

// CardKey returns the cache key for a repository's model card.
func CardKey(repoID string) string {
	return "hub:card:" + repoID
}

type entry struct {
	value     any
	expiresAt time.Time
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry

	// Counters are atomic so Get can stay on the read lock.
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64

	sweepStop chan struct{}
}

// NewMemoryCache creates the in-process backend. A cleanupInterval of
// zero disables the background sweep; expired entries are then only
// dropped lazily on Get.
func NewMemoryCache(cleanupInterval time.Duration) Cache {
	c := &memoryCache{entries: make(map[string]entry)}

	if cleanupInterval > 0 {
		c.sweepStop = make(chan struct{})
		go c.sweepLoop(cleanupInterval)
	}

	return c
}

func (c *memoryCache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()

	if !found || time.Now().After(e.expiresAt) {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return e.value, true
}

func (c *memoryCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	c.sets.Add(1)
}

func (c *memoryCache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *memoryCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

func (c *memoryCache) Stats() CacheStats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()

	return CacheStats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		Evictions:   c.evictions.Load(),
		CurrentSize: size,
	}
}

// Stop ends the background sweep goroutine.
func (c *memoryCache) Stop() {
	if c.sweepStop != nil {
		close(c.sweepStop)
	}
}

func (c *memoryCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.sweepStop:
			return
		}
	}
}

func (c *memoryCache) sweep() {
	now := time.Now()

	c.mu.Lock()
	var removed int64
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	c.evictions.Add(removed)
}

type noOpCache struct{}

// NewNoOpCache creates a backend that stores nothing. Every Get is a
// miss, so callers always go to the hub.
func NewNoOpCache() Cache {
	return &noOpCache{}
}

func (*noOpCache) Get(string) (any, bool)         { return nil, false }
func (*noOpCache) Set(string, any, time.Duration) {}
func (*noOpCache) Delete(string)                  {}
func (*noOpCache) Clear()                         {}
func (*noOpCache) Stats() CacheStats              { return CacheStats{} }
