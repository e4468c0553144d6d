package game

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverFrameCadencePassesMeasuredDelta(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	ticks := make(chan time.Duration, 1)
	d := StartDriver(ctx, clock, CadenceFrame, 20*time.Millisecond, func(delta time.Duration) {
		ticks <- delta
	})
	defer d.Stop()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	for range 3 {
		clock.Advance(20 * time.Millisecond)
		select {
		case delta := <-ticks:
			assert.Equal(t, 20*time.Millisecond, delta)
		case <-ctx.Done():
			t.Fatal("timed out waiting for frame tick")
		}
	}
}

func TestDriverSecondCadencePassesFixedDelta(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	ticks := make(chan time.Duration, 1)
	d := StartDriver(ctx, clock, CadenceSecond, 0, func(delta time.Duration) {
		ticks <- delta
	})
	defer d.Stop()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)

	select {
	case delta := <-ticks:
		assert.Equal(t, time.Second, delta)
	case <-ctx.Done():
		t.Fatal("timed out waiting for second tick")
	}
}

func TestDriverStop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := StartDriver(context.Background(), clock, CadenceSecond, 0, func(time.Duration) {})

	d.Stop()

	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("driver did not exit after Stop")
	}
}
