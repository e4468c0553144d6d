// Package memstore is an in-process store.Backend. It is the default
// backend for local play and the fake used by client tests.
package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/lomba/go/internal/models"
	"github.com/mcdev12/lomba/go/internal/store"
)

// Store keeps both collections in memory
type Store struct {
	clock    clockwork.Clock
	notifier *store.Notifier

	mu     sync.RWMutex
	scores []models.ScoreRecord
	chat   []models.ChatMessage
	// failWith, when set, makes every call fail; used to simulate outages
	failWith error
}

// New returns an empty store stamping records with clock
func New(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock:    clock,
		notifier: store.NewNotifier(),
	}
}

// FailWith makes every subsequent call return err. A nil err heals the store.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *Store) AppendScore(ctx context.Context, rec *models.ScoreRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.failWith != nil {
		s.mu.Unlock()
		return s.failWith
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.CreatedAt = s.clock.Now().UTC()
	s.scores = append(s.scores, *rec)
	s.mu.Unlock()

	s.notifier.Notify(store.TopicScores)
	return nil
}

func (s *Store) TopScores(ctx context.Context, limit int) ([]models.ScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	if s.failWith != nil {
		s.mu.RUnlock()
		return nil, s.failWith
	}
	out := slices.Clone(s.scores)
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b models.ScoreRecord) int {
		return b.Score - a.Score
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) AppendChat(ctx context.Context, msg *models.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.failWith != nil {
		s.mu.Unlock()
		return s.failWith
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = s.clock.Now().UTC()
	s.chat = append(s.chat, *msg)
	s.mu.Unlock()

	s.notifier.Notify(store.TopicChat)
	return nil
}

func (s *Store) ListChat(ctx context.Context) ([]models.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	return slices.Clone(s.chat), nil
}

func (s *Store) Watch(ctx context.Context, topic store.Topic) (<-chan struct{}, error) {
	if err := store.CheckTopic(topic); err != nil {
		return nil, err
	}
	return s.notifier.Watch(ctx, topic), nil
}

func (s *Store) Close() error {
	s.notifier.Close()
	return nil
}

var _ store.Backend = (*Store)(nil)
