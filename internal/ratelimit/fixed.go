package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// CounterStore is the shared atomic-counter backend for the fixed window
// limiter. Incr must be atomic across process replicas; Expire and TTL are
// best-effort. A TTL of zero means the key has no expiry or does not exist.
type CounterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// FixedWindowLimiter implements an approximate fixed-window limiter over a
// shared counter store, safe across multiple instances.
//
// The increment and the expiry-set are two separate store operations. When
// two callers race the 0->1 transition, both may attempt the expiry-set with
// the same TTL, which is benign; the real imprecision is boundary slip: a
// caller arriving at the edge of a window can be granted a (limit+1)-th
// operation in rare interleavings. This is an accepted approximation for
// multi-instance deployments, not an exactness guarantee.
type FixedWindowLimiter struct {
	store  CounterStore
	prefix string
}

// NewFixedWindowLimiter constructs a FixedWindowLimiter.
func NewFixedWindowLimiter(store CounterStore, prefix string) *FixedWindowLimiter {
	return &FixedWindowLimiter{store: store, prefix: prefix}
}

// Allow atomically increments the window counter and enforces the limit.
// Callers must key tiers disjointly; the window length is part of the key.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration, _ time.Time) (Result, error) {
	if limit <= 0 || key == "" || l == nil || l.store == nil {
		return Result{Allowed: true}, nil
	}

	storeKey := l.buildKey(key, window)
	count, errIncr := l.store.Incr(ctx, storeKey)
	if errIncr != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, errIncr)
	}
	if count == 1 {
		if errExpire := l.store.Expire(ctx, storeKey, window); errExpire != nil {
			log.WithError(errExpire).Warn("rate limit: set window expiry failed")
		}
	}

	if count > int64(limit) {
		retryAfter := window
		if ttl, errTTL := l.store.TTL(ctx, storeKey); errTTL == nil && ttl > 0 {
			retryAfter = ttl
		}
		return Result{Allowed: false, RetryAfter: clampRetryAfter(retryAfter)}, nil
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: true, Remaining: remaining}, nil
}

func (l *FixedWindowLimiter) buildKey(key string, window time.Duration) string {
	secs := strconv.FormatInt(int64(window/time.Second), 10)
	if l.prefix == "" {
		return "rl:" + key + ":" + secs
	}
	return l.prefix + ":rl:" + key + ":" + secs
}
