package llm

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a minimum interval between LLM requests. The validation
// pipeline and the free-form oracle path share one Limiter, so the combined
// request rate stays inside a single budget instead of two implicit ones.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
}

// NewLimiter creates a Limiter with the given minimum interval between
// requests. A zero or negative interval disables limiting.
func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Wait blocks until the caller may issue a request, reserving the next slot.
// It returns early with the context error if ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.interval <= 0 {
		return ctx.Err()
	}

	l.mu.Lock()
	now := l.now()
	wait := l.next.Sub(now)
	if wait < 0 {
		wait = 0
	}
	// Reserve the slot before sleeping so concurrent callers queue up
	// behind each other instead of racing for the same slot.
	start := now.Add(wait)
	l.next = start.Add(l.interval)
	l.mu.Unlock()

	if wait == 0 {
		return ctx.Err()
	}
	return l.sleep(ctx, wait)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
