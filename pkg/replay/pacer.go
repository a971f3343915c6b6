package replay

import (
	"context"
	"time"
)

// Pacer holds the driver for a fixed delay between strides.
type Pacer struct {
	delay time.Duration
	after func(time.Duration) (<-chan time.Time, func() bool)
}

// NewPacer creates a Pacer with the given delay. A non-positive delay disables pacing.
func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{delay: delay, after: realTimer}
}

// Delay returns the configured delay.
func (p *Pacer) Delay() time.Duration { return p.delay }

// Wait blocks for the configured delay or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}

	fired, stop := p.after(p.delay)
	defer stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-fired:
		return nil
	}
}

func realTimer(d time.Duration) (<-chan time.Time, func() bool) {
	timer := time.NewTimer(d)

	return timer.C, timer.Stop
}
