package cache

import (
	"context"
	"encoding/json"
	"time"
)

// TTL tiers. Call sites pick the bucket that names their freshness intent
// instead of sprinkling numeric durations around.
const (
	TTLMinute = time.Minute
	TTLShort  = 5 * time.Minute
	TTLMedium = 15 * time.Minute
	TTLLong   = 30 * time.Minute
	TTLHour   = time.Hour
)

// Fetcher produces the value on a cache miss.
type Fetcher func(ctx context.Context) ([]byte, error)

// Cache is a read-through cache-aside helper over a key/value backend.
//
// The cache is a latency optimization, never a correctness dependency: any
// backend failure makes GetCached fall through to the fetcher instead of
// propagating the cache error.
type Cache interface {
	// GetCached returns the stored value for key, or invokes fetcher, stores
	// the result with the given TTL, and returns it.
	GetCached(ctx context.Context, key string, ttl time.Duration, fetcher Fetcher) ([]byte, error)

	// GetMany batches lookups. Missing or unreadable keys are simply absent
	// from the result map.
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)

	// Invalidate removes all keys matching a prefix/wildcard pattern
	// (e.g. "tenant:123:*"). Used after mutations to drop stale aggregates.
	Invalidate(ctx context.Context, pattern string) error

	Close() error
}

// GetJSON is a typed convenience over Cache for JSON-encoded values.
func GetJSON[T any](ctx context.Context, c Cache, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	raw, err := c.GetCached(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		// A poisoned cache entry must not break reads; recompute directly.
		return fetch(ctx)
	}
	return out, nil
}
