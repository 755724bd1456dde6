// Package throttle limits how often a refresh may reach the network.
package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the throttle window used when none is configured.
const DefaultInterval = 5 * time.Minute

// Throttle lets at most one call through per interval. Calls arriving inside
// the window, or while a permitted call is still running, are refused
// without blocking.
type Throttle struct {
	interval time.Duration
	now      func() time.Time

	limit   *rate.Limiter
	running sync.Mutex
}

type Option func(t *Throttle)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Throttle) {
		t.now = now
	}
}

func New(interval time.Duration, opts ...Option) *Throttle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	t := &Throttle{
		interval: interval,
		now:      time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	t.limit = rate.NewLimiter(rate.Every(interval), 1)
	return t
}

// Interval returns the configured window.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}

// Do runs fn if the window is open and nothing else is in flight. It reports
// whether fn ran.
func (t *Throttle) Do(ctx context.Context, fn func(ctx context.Context)) bool {
	if !t.running.TryLock() {
		return false
	}
	defer t.running.Unlock()

	if !t.limit.AllowN(t.now(), 1) {
		return false
	}

	fn(ctx)
	return true
}
