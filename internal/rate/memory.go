package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps per-key fixed windows in process memory. Suitable for
// dev/test and single-instance deployments; expired entries are swept lazily
// on the next Allow after a full window.
type MemoryLimiter struct {
	mu         sync.Mutex
	limit      int
	window     time.Duration
	entries    map[string]*window
	lastSweep  time.Time
	sweepEvery time.Duration
}

type window struct {
	count int
	reset time.Time
}

func NewMemory(limit int, windowSize time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:      limit,
		window:     windowSize,
		entries:    map[string]*window{},
		lastSweep:  time.Now(),
		sweepEvery: windowSize,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, now time.Time) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.sweepEvery {
		for k, w := range l.entries {
			if now.After(w.reset) {
				delete(l.entries, k)
			}
		}
		l.lastSweep = now
	}

	w, ok := l.entries[key]
	if !ok || now.After(w.reset) {
		l.entries[key] = &window{count: 1, reset: now.Add(l.window)}
		return true, 0, nil
	}

	if w.count >= l.limit {
		retryAfter := w.reset.Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter, nil
	}

	w.count++
	return true, 0, nil
}
