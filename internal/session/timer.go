package session

import (
	"context"
	"sync/atomic"
	"time"
)

// Countdown tracks an absolute deadline. Remaining time is always derived
// from (deadline - now), never from a decremented counter, so a stalled or
// skipped tick cannot desynchronize the session from the real deadline; the
// per-second tick exists only to drive display updates and expiry detection.
type Countdown struct {
	deadline time.Time
	interval time.Duration

	onExpire func()

	expired atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewCountdown builds a countdown that fires onExpire exactly once when the
// deadline passes. interval is the tick period; production callers pass
// time.Second.
func NewCountdown(deadline time.Time, interval time.Duration, onExpire func()) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{
		deadline: deadline,
		interval: interval,
		onExpire: onExpire,
		done:     make(chan struct{}),
	}
}

// Remaining reports whole seconds until the deadline, clamped at zero.
func (c *Countdown) Remaining() int {
	remaining := int(time.Until(c.deadline).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Start begins ticking. Expiry fires at most once even if several intervals
// were skipped while the process was suspended.
func (c *Countdown) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	go func() {
		defer close(c.done)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if time.Now().Before(c.deadline) {
					continue
				}
				// onExpire gets its own goroutine so it can call Stop without
				// waiting on the ticker goroutine it was born from.
				if c.expired.CompareAndSwap(false, true) {
					go c.onExpire()
				}
				return
			}
		}
	}()
}

// Stop cancels future ticks. A stopped countdown never fires expiry.
func (c *Countdown) Stop() {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
}

// Expired reports whether the terminal expiry event has fired.
func (c *Countdown) Expired() bool {
	return c.expired.Load()
}
