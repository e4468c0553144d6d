package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierCoalesces(t *testing.T) {
	n := NewNotifier()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := n.Watch(ctx, TopicScores)
	n.Notify(TopicScores)
	n.Notify(TopicScores)
	n.Notify(TopicScores)

	select {
	case _, ok := <-ch:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("expected a signal")
	}
	select {
	case <-ch:
		t.Fatal("signals should coalesce")
	default:
	}
}

func TestNotifierTopicsAreIndependent(t *testing.T) {
	n := NewNotifier()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chat := n.Watch(ctx, TopicChat)
	n.Notify(TopicScores)

	select {
	case <-chat:
		t.Fatal("chat watcher saw a score change")
	default:
	}
}

func TestNotifierClosesOnContextEnd(t *testing.T) {
	n := NewNotifier()
	ctx, cancel := context.WithCancel(context.Background())

	ch := n.Watch(ctx, TopicChat)
	assert.Equal(t, 1, n.Watchers(TopicChat))
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("watch channel was not closed")
	}
	assert.Eventually(t, func() bool { return n.Watchers(TopicChat) == 0 }, time.Second, time.Millisecond)
}

func TestNotifierClose(t *testing.T) {
	n := NewNotifier()
	ch := n.Watch(context.Background(), TopicScores)
	n.Close()

	_, ok := <-ch
	assert.False(t, ok)

	late := n.Watch(context.Background(), TopicScores)
	_, ok = <-late
	assert.False(t, ok)

	n.Notify(TopicScores)
	n.Close()
}
