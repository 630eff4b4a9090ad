package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeCounterStore struct {
	mu       sync.Mutex
	counts   map[string]int64
	ttls     map[string]time.Duration
	failIncr error
	incrs    int
	expires  int
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{
		counts: make(map[string]int64),
		ttls:   make(map[string]time.Duration),
	}
}

func (s *fakeCounterStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIncr != nil {
		return 0, s.failIncr
	}
	s.incrs++
	s.counts[key]++
	return s.counts[key], nil
}

func (s *fakeCounterStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expires++
	s.ttls[key] = ttl
	return nil
}

func (s *fakeCounterStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttls[key], nil
}

func TestFixedWindowAllowsUpToLimit(t *testing.T) {
	store := newFakeCounterStore()
	l := NewFixedWindowLimiter(store, "test")
	now := time.Now()

	for i := 0; i < 5; i++ {
		res, err := l.Allow(context.Background(), "u:1:booking", 5, time.Minute, now)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("expected call %d allowed", i)
		}
	}

	res, err := l.Allow(context.Background(), "u:1:booking", 5, time.Minute, now)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if res.Allowed {
		t.Fatalf("expected 6th call rejected")
	}
	if res.RetryAfter != time.Minute {
		t.Fatalf("expected retry-after from ttl %s, got %s", time.Minute, res.RetryAfter)
	}
}

func TestFixedWindowSetsExpiryOnlyOnFirstIncrement(t *testing.T) {
	store := newFakeCounterStore()
	l := NewFixedWindowLimiter(store, "test")
	now := time.Now()

	for i := 0; i < 3; i++ {
		if _, err := l.Allow(context.Background(), "u:2:ai", 10, time.Minute, now); err != nil {
			t.Fatalf("allow: %v", err)
		}
	}
	if store.expires != 1 {
		t.Fatalf("expected exactly one expiry-set, got %d", store.expires)
	}
}

func TestFixedWindowRetryAfterFallsBackToWindow(t *testing.T) {
	store := newFakeCounterStore()
	l := NewFixedWindowLimiter(store, "test")
	now := time.Now()

	// Seed a counter over the limit with no recorded expiry.
	key := l.buildKey("u:3", 30*time.Second)
	store.counts[key] = 10
	delete(store.ttls, key)

	res, err := l.Allow(context.Background(), "u:3", 5, 30*time.Second, now)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if res.Allowed {
		t.Fatalf("expected rejection")
	}
	if res.RetryAfter != 30*time.Second {
		t.Fatalf("expected full-window fallback, got %s", res.RetryAfter)
	}
}

func TestFixedWindowTiersUseDisjointKeys(t *testing.T) {
	store := newFakeCounterStore()
	l := NewFixedWindowLimiter(store, "test")
	now := time.Now()

	// Same identifier checked under two tiers; exhausting one must not
	// consume the other.
	for i := 0; i < 5; i++ {
		res, err := l.Allow(context.Background(), "u:4:booking", 5, time.Minute, now)
		if err != nil || !res.Allowed {
			t.Fatalf("booking allow %d: allowed=%v err=%v", i, res.Allowed, err)
		}
	}
	res, err := l.Allow(context.Background(), "u:4:ai", 5, time.Minute, now)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !res.Allowed {
		t.Fatalf("expected ai tier unaffected by booking tier exhaustion")
	}
}

func TestFixedWindowConcurrentCallersNeverExceedLimit(t *testing.T) {
	store := newFakeCounterStore()
	l := NewFixedWindowLimiter(store, "test")
	now := time.Now()

	const limit = 20
	const callers = 60

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Allow(context.Background(), "u:5", limit, time.Minute, now)
			if err != nil {
				t.Errorf("allow: %v", err)
				return
			}
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != limit {
		t.Fatalf("expected exactly %d allowed, got %d", limit, allowed)
	}
}

func TestFixedWindowStoreFailureSurfacesAsUnavailable(t *testing.T) {
	store := newFakeCounterStore()
	store.failIncr = errors.New("connection refused")
	l := NewFixedWindowLimiter(store, "test")

	_, err := l.Allow(context.Background(), "u:6", 5, time.Minute, time.Now())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
