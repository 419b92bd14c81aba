package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter: ventana fija in-process. Para single-replica o desarrollo;
// con varias réplicas el límite efectivo se multiplica, usar RedisLimiter.
type MemoryLimiter struct {
	max    int64
	window time.Duration

	mu      sync.Mutex
	windows map[string]*memWindow
}

type memWindow struct {
	start time.Time
	hits  int64
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:     int64(max),
		window:  window,
		windows: make(map[string]*memWindow),
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now()
	winStart := now.Truncate(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	if w == nil || !w.start.Equal(winStart) {
		// Ventana nueva; de paso purgar entradas viejas para no crecer sin tope
		if len(l.windows) > 4096 {
			for k, old := range l.windows {
				if !old.start.Equal(winStart) {
					delete(l.windows, k)
				}
			}
		}
		w = &memWindow{start: winStart}
		l.windows[key] = w
	}

	w.hits++
	if w.hits > l.max {
		return Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: winStart.Add(l.window).Sub(now),
		}, nil
	}
	return Result{Allowed: true, Remaining: l.max - w.hits}, nil
}
