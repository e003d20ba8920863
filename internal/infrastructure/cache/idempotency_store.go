package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore is the fast-path duplicate check in front of the webhook
// log's unique constraint. The datastore constraint stays the authority; this
// store only saves a round trip for the common redelivery case and may be
// unavailable without affecting correctness.
type IdempotencyStore interface {
	// MarkProcessed atomically records the id. Returns true if the id was
	// newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, notificationID string, ttl time.Duration) (bool, error)
	// Unmark removes a mark, compensating a MarkProcessed whose delivery
	// never made it into the log. Missing marks are not an error.
	Unmark(ctx context.Context, notificationID string) error
	Close() error
}

// RedisIdempotencyStore shares duplicate state across instances via SETNX.
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisIdempotencyStore wraps an existing Redis client.
func NewRedisIdempotencyStore(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = "webhook:idempotency:"
	}
	return &RedisIdempotencyStore{client: client, keyPrefix: keyPrefix}
}

// MarkProcessed uses SETNX with TTL as a single atomic operation.
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, notificationID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+notificationID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark notification as processed: %w", err)
	}
	return ok, nil
}

// Unmark deletes the mark so a later redelivery takes the fresh path again.
func (s *RedisIdempotencyStore) Unmark(ctx context.Context, notificationID string) error {
	if err := s.client.Del(ctx, s.keyPrefix+notificationID).Err(); err != nil {
		return fmt.Errorf("failed to unmark notification: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

// MemoryIdempotencyStore is the in-process variant for tests and single-node
// deployments.
type MemoryIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemoryIdempotencyStore creates an empty store
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{seen: make(map[string]time.Time)}
}

// MarkProcessed records the id, evicting it after ttl.
func (s *MemoryIdempotencyStore) MarkProcessed(ctx context.Context, notificationID string, ttl time.Duration) (bool, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.seen[notificationID]; ok && now.Before(expiry) {
		return false, nil
	}
	s.seen[notificationID] = now.Add(ttl)
	return true, nil
}

// Unmark removes the mark if present.
func (s *MemoryIdempotencyStore) Unmark(ctx context.Context, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, notificationID)
	return nil
}

// Close is a no-op
func (s *MemoryIdempotencyStore) Close() error {
	return nil
}

var (
	_ IdempotencyStore = (*RedisIdempotencyStore)(nil)
	_ IdempotencyStore = (*MemoryIdempotencyStore)(nil)
)
