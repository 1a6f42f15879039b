package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is the single-instance counterpart of RedisLimiter. Same
// fixed-window algorithm, counters held in process.
type MemoryLimiter struct {
	max    int64
	window time.Duration

	mu       sync.Mutex
	winStart time.Time
	hits     map[string]int64

	now func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:    int64(max),
		window: window,
		hits:   make(map[string]int64),
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now().UTC()
	winStart := now.Truncate(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	if !winStart.Equal(l.winStart) {
		l.winStart = winStart
		l.hits = make(map[string]int64)
	}

	l.hits[key]++
	hits := l.hits[key]

	res := Result{
		Allowed:   hits <= l.max,
		Remaining: max(l.max-hits, 0),
	}
	if !res.Allowed {
		res.RetryAfter = winStart.Add(l.window).Sub(now)
	}
	return res, nil
}
