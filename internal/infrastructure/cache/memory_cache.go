package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryCache implements Cache with an in-process map. Used by tests and by
// single-node deployments that run without Redis. Entries are evicted lazily
// on read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) get(key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

// GetCached implements the cache-aside read path.
func (c *MemoryCache) GetCached(ctx context.Context, key string, ttl time.Duration, fetcher Fetcher) ([]byte, error) {
	if val, ok := c.get(key); ok {
		return val, nil
	}

	val, err := fetcher(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = memoryEntry{value: val, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	return val, nil
}

// GetMany batches lookups; expired keys are absent from the result.
func (c *MemoryCache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if val, ok := c.get(k); ok {
			out[k] = val
		}
	}
	return out, nil
}

// Invalidate removes all keys matching the prefix/wildcard pattern. Only a
// trailing "*" wildcard is supported, matching how call sites invalidate
// per-tenant aggregates.
func (c *MemoryCache) Invalidate(ctx context.Context, pattern string) error {
	prefix, wildcard := strings.CutSuffix(pattern, "*")

	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if wildcard && strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		} else if !wildcard && k == pattern {
			delete(c.entries, k)
		}
	}
	return nil
}

// Close is a no-op for the in-memory cache
func (c *MemoryCache) Close() error {
	return nil
}

var _ Cache = (*MemoryCache)(nil)
