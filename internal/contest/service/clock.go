package service

import (
	"context"
	"time"
)

const defaultTickInterval = time.Second

// Clock drives the contest countdown from a single goroutine.
type Clock struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// startClock calls tick every interval until tick returns false or the clock is cancelled.
// tick receives the clock context so it can detect a cancellation that raced the ticker.
func startClock(parent context.Context, interval time.Duration, tick func(ctx context.Context) bool) *Clock {
	if interval <= 0 {
		interval = defaultTickInterval
	}
	ctx, cancel := context.WithCancel(parent)
	c := &Clock{ctx: ctx, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(c.done)
		defer cancel()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !tick(ctx) {
					return
				}
			}
		}
	}()
	return c
}

// Cancel stops the countdown without waiting for the goroutine.
func (c *Clock) Cancel() {
	c.cancel()
}

// Wait blocks until the clock goroutine exits.
func (c *Clock) Wait() {
	<-c.done
}
