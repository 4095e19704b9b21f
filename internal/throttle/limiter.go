// Package throttle serializes calls to the upstream explorer API under a
// requests-per-second budget. Grants are strictly FIFO: each caller chains on
// the previous caller's grant, so no call can overtake one queued earlier.
package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter issues grants at most once per interval, in call order.
type Limiter struct {
	interval time.Duration

	mu   sync.Mutex
	tail chan time.Time
}

// NewLimiter builds a limiter for the given requests-per-second budget.
func NewLimiter(rps float64) (*Limiter, error) {
	if rps <= 0 {
		return nil, fmt.Errorf("rps must be positive")
	}

	// Seed the chain with a zero grant time so the first caller
	// proceeds immediately.
	tail := make(chan time.Time, 1)
	tail <- time.Time{}

	return &Limiter{
		interval: time.Duration(float64(time.Second) / rps),
		tail:     tail,
	}, nil
}

// Acquire blocks until the minimum inter-request interval since the previous
// grant has elapsed, or the context is cancelled. A cancelled caller hands
// its turn to the next caller in line, so cancellation never stalls the chain.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	prev := l.tail
	turn := make(chan time.Time, 1)
	l.tail = turn
	l.mu.Unlock()

	var last time.Time
	select {
	case last = <-prev:
	case <-ctx.Done():
		go func() { turn <- <-prev }()
		return ctx.Err()
	}

	if wait := l.interval - time.Since(last); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			turn <- last
			return ctx.Err()
		}
	}

	turn <- time.Now()
	return nil
}

// Interval reports the configured minimum spacing between grants.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
