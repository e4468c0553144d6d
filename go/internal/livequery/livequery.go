// Package livequery turns a store change watch into a stream of full,
// ordered result sets.
package livequery

import (
	"context"
	"fmt"
	"sync"

	"github.com/mcdev12/lomba/go/internal/models"
	"github.com/mcdev12/lomba/go/internal/store"
	"github.com/rs/zerolog/log"
)

// Watcher is the part of a store.Backend a subscription needs
type Watcher interface {
	Watch(ctx context.Context, topic store.Topic) (<-chan struct{}, error)
}

// FetchFunc reads the current ordered result set
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Subscription keeps a live query open until Close
type Subscription struct {
	topic     store.Topic
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Subscribe delivers the current result set to fn before returning, then a
// fresh one after every change to topic. A failed refresh is logged and
// skipped; the next change retries it. fn is never called concurrently and
// never after Close returns.
func Subscribe[T any](ctx context.Context, w Watcher, topic store.Topic, fetch FetchFunc[T], fn func([]T)) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	changes, err := w.Watch(ctx, topic)
	if err != nil {
		cancel()
		return nil, &models.TransportError{Op: fmt.Sprintf("watch %s", topic), Err: err}
	}

	initial, err := fetch(ctx)
	if err != nil {
		cancel()
		return nil, &models.TransportError{Op: fmt.Sprintf("fetch %s", topic), Err: err}
	}
	fn(initial)

	sub := &Subscription{
		topic:  topic,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				items, err := fetch(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Error().Err(err).Str("topic", string(topic)).Msg("failed to refresh live query")
					continue
				}
				if ctx.Err() != nil {
					return
				}
				fn(items)
			}
		}
	}()

	return sub, nil
}

// Close releases the watch and waits for any in-flight delivery to finish.
// It must not be called from inside the delivery callback.
func (s *Subscription) Close() {
	s.closeOnce.Do(s.cancel)
	<-s.done
}

// Done is closed when the subscription stops, by Close or because the
// backend closed its watch
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
