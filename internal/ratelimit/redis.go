package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 2 * time.Second

// RedisCounterStore implements CounterStore on a Redis client.
type RedisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore constructs a RedisCounterStore.
func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

// Incr atomically increments the counter key.
func (s *RedisCounterStore) Incr(ctx context.Context, key string) (int64, error) {
	ctxOp, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	return s.client.Incr(ctxOp, key).Result()
}

// Expire sets a TTL on the counter key.
func (s *RedisCounterStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ctxOp, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	return s.client.Expire(ctxOp, key, ttl).Err()
}

// TTL returns the remaining lifetime of the counter key. Keys without an
// expiry or missing keys report zero so callers fall back to the full window.
func (s *RedisCounterStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctxOp, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	ttl, errTTL := s.client.TTL(ctxOp, key).Result()
	if errTTL != nil {
		return 0, errTTL
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Close releases the underlying client.
func (s *RedisCounterStore) Close() error {
	return s.client.Close()
}
