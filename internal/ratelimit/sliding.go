package ratelimit

import (
	"context"
	"sync"
	"time"
)

const defaultSweepInterval = 5 * time.Minute

type slidingEntry struct {
	stamps []time.Time
	window time.Duration
}

// SlidingLimiter implements an exact sliding-window log limiter in process
// memory. It never admits more than limit operations in any trailing window,
// but is only accurate within a single instance.
type SlidingLimiter struct {
	mu      sync.Mutex
	entries map[string]*slidingEntry
	nowFn   func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// NewSlidingLimiter constructs a SlidingLimiter and starts its eviction sweep.
func NewSlidingLimiter(sweepInterval time.Duration, nowFn func() time.Time) *SlidingLimiter {
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	l := &SlidingLimiter{
		entries: make(map[string]*slidingEntry),
		nowFn:   nowFn,
		done:    make(chan struct{}),
	}
	go l.sweepLoop(sweepInterval)
	return l
}

// Allow checks whether the request should be allowed in the trailing window.
// Prune, count, and append happen under one critical section.
func (l *SlidingLimiter) Allow(_ context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.entries[key]
	if entry == nil {
		entry = &slidingEntry{}
		l.entries[key] = entry
	}
	entry.window = window

	// A stamp at exactly windowStart has aged out: otherwise a caller who
	// waits the advertised retry-after lands on the boundary and is
	// rejected again.
	windowStart := now.Add(-window)
	stamps := entry.stamps
	idx := 0
	for idx < len(stamps) && !stamps[idx].After(windowStart) {
		idx++
	}
	if idx > 0 {
		stamps = append(stamps[:0], stamps[idx:]...)
	}

	if len(stamps) >= limit {
		entry.stamps = stamps
		retryAfter := stamps[0].Add(window).Sub(now)
		return Result{Allowed: false, RetryAfter: clampRetryAfter(retryAfter)}, nil
	}

	entry.stamps = append(stamps, now)
	return Result{Allowed: true, Remaining: limit - len(entry.stamps)}, nil
}

// sweepLoop periodically drops identifiers with no live window entries so the
// map does not grow without bound under high identifier cardinality.
func (l *SlidingLimiter) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.sweep(l.nowFn())
		}
	}
}

func (l *SlidingLimiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, entry := range l.entries {
		windowStart := now.Add(-entry.window)
		stamps := entry.stamps
		idx := 0
		for idx < len(stamps) && !stamps[idx].After(windowStart) {
			idx++
		}
		if idx >= len(stamps) {
			delete(l.entries, key)
			continue
		}
		if idx > 0 {
			entry.stamps = append(stamps[:0], stamps[idx:]...)
		}
	}
}

// Close stops the eviction sweep.
func (l *SlidingLimiter) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}
