// Package ratelimit provides a counter-with-expiry rate limiter used to
// guard the signup endpoint. State lives in a pluggable store so tests run
// against memory and production runs against Redis.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

var ErrStoreUnavailable = errors.New("ratelimit: store unavailable")

// Store increments a counter for a key within a fixed window.
// The returned count includes the current hit. The first hit of a window
// starts the expiry clock.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter allows up to Limit hits per Window per key.
type Limiter struct {
	store  Store
	limit  int64
	window time.Duration
}

func New(store Store, limit int64, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

// Allow records a hit and reports whether the key is within its budget.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		return false, errors.Join(ErrStoreUnavailable, err)
	}
	return count <= l.limit, nil
}
