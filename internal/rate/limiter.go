// Package rate limits login attempts per client IP.
package rate

import (
	"context"
	"time"
)

// Limiter is a fixed-window counter. Allow reports whether the key may
// proceed at now, and how long to wait when it may not.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (allowed bool, retryAfter time.Duration, err error)
}
