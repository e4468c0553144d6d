package store

import (
	"context"
	"sync"
)

// Notifier fans change signals out to watchers in this process. A watcher
// that has not consumed its last signal gets no second one.
type Notifier struct {
	mu       sync.Mutex
	watchers map[Topic]map[chan struct{}]struct{}
	closed   bool
}

// NewNotifier returns an empty notifier
func NewNotifier() *Notifier {
	return &Notifier{
		watchers: make(map[Topic]map[chan struct{}]struct{}),
	}
}

// Watch registers a watcher for topic until ctx ends
func (n *Notifier) Watch(ctx context.Context, topic Topic) <-chan struct{} {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		close(ch)
		return ch
	}
	set, ok := n.watchers[topic]
	if !ok {
		set = make(map[chan struct{}]struct{})
		n.watchers[topic] = set
	}
	set[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.remove(topic, ch)
	}()

	return ch
}

// Notify signals every watcher of topic without blocking
func (n *Notifier) Notify(topic Topic) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.watchers[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watchers returns how many watchers are registered for topic
func (n *Notifier) Watchers(topic Topic) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.watchers[topic])
}

// Close closes every watcher channel; later watches get a closed channel
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true
	for topic, set := range n.watchers {
		for ch := range set {
			close(ch)
		}
		delete(n.watchers, topic)
	}
}

func (n *Notifier) remove(topic Topic, ch chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	set := n.watchers[topic]
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	close(ch)
}
