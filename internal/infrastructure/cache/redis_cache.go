package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache implements Cache on a shared Redis backend. Suitable for
// multi-instance deployments where the instances should share hot aggregates.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(cfg RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheWithClient(client, "cache:", logger), nil
}

// NewRedisCacheWithClient wraps an existing client. Useful for tests and for
// sharing one client across components.
func NewRedisCacheWithClient(client *redis.Client, keyPrefix string, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, keyPrefix: keyPrefix, logger: logger}
}

// GetCached implements the cache-aside read path. Backend failures degrade to
// the fetcher; only fetcher errors propagate.
func (c *RedisCache) GetCached(ctx context.Context, key string, ttl time.Duration, fetcher Fetcher) ([]byte, error) {
	full := c.keyPrefix + key

	val, err := c.client.Get(ctx, full).Bytes()
	if err == nil {
		return val, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.logger.Warn("cache backend read failed, falling back to fetcher",
			zap.String("key", key), zap.Error(err))
		return fetcher(ctx)
	}

	val, err = fetcher(ctx)
	if err != nil {
		return nil, err
	}

	if setErr := c.client.Set(ctx, full, val, ttl).Err(); setErr != nil {
		c.logger.Warn("cache backend write failed",
			zap.String("key", key), zap.Error(setErr))
	}
	return val, nil
}

// GetMany batches lookups with MGET. A backend failure returns an empty map
// so callers fall back to their source of truth.
func (c *RedisCache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.keyPrefix + k
	}

	vals, err := c.client.MGet(ctx, full...).Result()
	if err != nil {
		c.logger.Warn("cache backend mget failed", zap.Error(err))
		return map[string][]byte{}, nil
	}

	out := make(map[string][]byte, len(keys))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[keys[i]] = []byte(s)
		}
	}
	return out, nil
}

// Invalidate removes all keys matching the pattern using SCAN to avoid
// blocking Redis the way KEYS would.
func (c *RedisCache) Invalidate(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, c.keyPrefix+pattern, 100).Iterator()

	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("failed to delete cache keys: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}
	return nil
}

// Close closes the Redis client
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ Cache = (*RedisCache)(nil)
