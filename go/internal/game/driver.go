package game

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultFrameInterval is roughly one animation frame at 60 Hz
const DefaultFrameInterval = 16 * time.Millisecond

// TickFunc receives one tick worth of elapsed time
type TickFunc func(delta time.Duration)

// Driver delivers ticks to a session from its own goroutine
type Driver struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartDriver starts ticking fn at the given cadence. Frame cadence passes the
// delta measured on clock, second cadence always passes exactly one second.
// The driver runs until Stop is called or ctx ends.
func StartDriver(ctx context.Context, clock clockwork.Clock, cadence Cadence, frameInterval time.Duration, fn TickFunc) *Driver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}

	interval := frameInterval
	if cadence == CadenceSecond {
		interval = time.Second
	}

	ctx, cancel := context.WithCancel(ctx)
	d := &Driver{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	ticker := clock.NewTicker(interval)
	last := clock.Now()
	go func() {
		defer close(d.done)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				now := clock.Now()
				delta := now.Sub(last)
				last = now
				if cadence == CadenceSecond {
					delta = time.Second
				}
				fn(delta)
			}
		}
	}()

	return d
}

// Stop cancels the driver. It does not wait for an in-flight tick, so it is
// safe to call while holding a lock the tick callback also takes.
func (d *Driver) Stop() {
	d.cancel()
}

// Done is closed once the driver goroutine has exited
func (d *Driver) Done() <-chan struct{} {
	return d.done
}
