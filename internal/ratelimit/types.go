package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable indicates the shared counter store is unreachable or
// timed out. It is a transient fault, retryable by the caller; under the
// fail-closed policy it is surfaced instead of silently allowing or denying.
var ErrStoreUnavailable = errors.New("rate limit: counter store unavailable")

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter provides rate limit checks for a keyed counter.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error)
}

// clampRetryAfter enforces the minimum one second retry hint.
func clampRetryAfter(d time.Duration) time.Duration {
	if d < time.Second {
		return time.Second
	}
	return d
}
