package ratelimit

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/imutis/imutis-api/internal/config"
)

const storeBreakerDuration = 30 * time.Second

// Manager owns both limiter variants and picks a backend per check: the shared
// fixed-window counter when Redis is configured and healthy, otherwise the
// in-process sliding window. The failure policy decides whether a counter
// store outage falls back to memory (fail-open) or surfaces as a retryable
// error (fail-closed). Constructed once at startup and closed on shutdown.
type Manager struct {
	policy  config.FailurePolicy
	nowFn   func() time.Time
	sliding *SlidingLimiter
	fixed   Limiter
	closers []io.Closer

	mu           sync.Mutex
	breakerUntil time.Time
}

// NewManager constructs a Manager, connecting to Redis when enabled.
func NewManager(cfg config.RedisConfig, policy config.FailurePolicy, nowFn func() time.Time) *Manager {
	var store CounterStore
	var closer io.Closer
	if cfg.Enabled && cfg.Addr != "" {
		rs := NewRedisCounterStore(redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}))
		store = rs
		closer = rs
	}
	m := newManager(store, cfg.Prefix, policy, nowFn)
	if closer != nil {
		m.closers = append(m.closers, closer)
	}
	return m
}

// NewManagerWithStore constructs a Manager over an explicit counter store.
// A nil store disables the fixed-window backend entirely.
func NewManagerWithStore(store CounterStore, prefix string, policy config.FailurePolicy, nowFn func() time.Time) *Manager {
	return newManager(store, prefix, policy, nowFn)
}

func newManager(store CounterStore, prefix string, policy config.FailurePolicy, nowFn func() time.Time) *Manager {
	if nowFn == nil {
		nowFn = time.Now
	}
	switch policy {
	case config.FailOpen, config.FailClosed:
	default:
		policy = config.FailOpen
	}
	m := &Manager{
		policy:  policy,
		nowFn:   nowFn,
		sliding: NewSlidingLimiter(0, nowFn),
	}
	m.closers = append(m.closers, m.sliding)
	if store != nil {
		m.fixed = NewFixedWindowLimiter(store, prefix)
	}
	return m
}

// Allow checks whether the keyed operation should be admitted.
func (m *Manager) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	if m == nil || limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.nowFn()

	if m.fixed != nil {
		if m.isBreakerActive(now) {
			if m.policy == config.FailClosed {
				return Result{}, ErrStoreUnavailable
			}
		} else {
			result, errAllow := m.fixed.Allow(ctx, key, limit, window, now)
			if errAllow == nil {
				return result, nil
			}
			m.tripBreaker(errAllow, now)
			if m.policy == config.FailClosed {
				return Result{}, errAllow
			}
		}
	}
	return m.sliding.Allow(ctx, key, limit, window, now)
}

func (m *Manager) isBreakerActive(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) tripBreaker(err error, now time.Time) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(storeBreakerDuration)
	if m.policy == config.FailOpen {
		log.WithError(err).Warn("rate limit: counter store unavailable, falling back to memory")
	} else {
		log.WithError(err).Warn("rate limit: counter store unavailable, rejecting checks")
	}
}

// Close releases the limiter backends.
func (m *Manager) Close() error {
	var firstErr error
	for _, c := range m.closers {
		if errClose := c.Close(); errClose != nil && firstErr == nil {
			firstErr = errClose
		}
	}
	return firstErr
}
