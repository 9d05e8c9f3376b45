package ratelimit

import (
	"context"
	"time"
)

// Limiter answers whether one more request fits the identifier's window.
// Implementations must be safe under concurrent calls for the same bucket:
// the check-and-increment is atomic, and a denied request never increments.
type Limiter interface {
	Allow(ctx context.Context, identifier, action string, limit int, window time.Duration) (Result, error)
}

func windowStart(now time.Time, window time.Duration) time.Time {
	return now.UTC().Truncate(window)
}
