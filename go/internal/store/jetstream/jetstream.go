// Package jetstream is a store.Backend on a NATS JetStream stream. Every
// arcade process replays the stream into an in-memory view with an ordered
// consumer, so appends from any process reach every watcher.
package jetstream

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/lomba/go/internal/models"
	"github.com/mcdev12/lomba/go/internal/store"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Config holds the JetStream backend settings
type Config struct {
	URL             string
	StreamName      string
	SubjectPrefix   string // subjects are <prefix>.scores and <prefix>.chat
	Storage         jetstream.StorageType
	DuplicateWindow time.Duration
	MaxReconnects   int
	ReconnectWait   time.Duration
}

// DefaultConfig returns the backend settings for a server at url
func DefaultConfig(url string) Config {
	if url == "" {
		url = nats.DefaultURL
	}
	return Config{
		URL:             url,
		StreamName:      "LOMBA",
		SubjectPrefix:   "lomba",
		Storage:         jetstream.FileStorage,
		DuplicateWindow: 2 * time.Minute,
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
	}
}

func (c Config) subject(topic store.Topic) string {
	return c.SubjectPrefix + "." + string(topic)
}

// Store publishes appends to the stream and serves reads from the replayed view
type Store struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	cfg      Config
	consume  jetstream.ConsumeContext
	notifier *store.Notifier
	view     *view
}

// Open connects, ensures the stream exists and starts replaying it
func Open(ctx context.Context, cfg Config) (*Store, error) {
	opts := []nats.Option{
		nats.Name("lomba-arcade"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Error().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	s := &Store{
		nc:       nc,
		js:       js,
		cfg:      cfg,
		notifier: store.NewNotifier(),
		view:     newView(),
	}

	stream, err := s.ensureStream(ctx)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	consumer, err := stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{cfg.subject(store.TopicScores), cfg.subject(store.TopicChat)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create ordered consumer: %w", err)
	}

	s.consume, err = consumer.Consume(s.handle)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("start consumer: %w", err)
	}

	log.Info().
		Str("url", cfg.URL).
		Str("stream", cfg.StreamName).
		Msg("opened JetStream store")
	return s, nil
}

func (s *Store) ensureStream(ctx context.Context) (jetstream.Stream, error) {
	sc := jetstream.StreamConfig{
		Name:        s.cfg.StreamName,
		Description: "Arcade score ledger and chat stream",
		Subjects:    []string{s.cfg.subject(store.TopicScores), s.cfg.subject(store.TopicChat)},
		Retention:   jetstream.LimitsPolicy,
		Storage:     s.cfg.Storage,
		Duplicates:  s.cfg.DuplicateWindow,
	}

	stream, err := s.js.CreateOrUpdateStream(ctx, sc)
	if err != nil {
		return nil, err
	}
	log.Info().Str("stream", s.cfg.StreamName).Msg("JetStream stream ready")
	return stream, nil
}

// handle applies one replayed message to the view
func (s *Store) handle(msg jetstream.Msg) {
	meta, err := msg.Metadata()
	if err != nil {
		log.Error().Err(err).Str("subject", msg.Subject()).Msg("message without metadata")
		return
	}

	var topic store.Topic
	switch msg.Subject() {
	case s.cfg.subject(store.TopicScores):
		var rec models.ScoreRecord
		if err := json.Unmarshal(msg.Data(), &rec); err != nil {
			log.Error().Err(err).Uint64("sequence", meta.Sequence.Stream).Msg("bad score payload")
			s.view.skip(meta.Sequence.Stream)
			return
		}
		rec.CreatedAt = meta.Timestamp.UTC()
		s.view.applyScore(meta.Sequence.Stream, rec)
		topic = store.TopicScores
	case s.cfg.subject(store.TopicChat):
		var m models.ChatMessage
		if err := json.Unmarshal(msg.Data(), &m); err != nil {
			log.Error().Err(err).Uint64("sequence", meta.Sequence.Stream).Msg("bad chat payload")
			s.view.skip(meta.Sequence.Stream)
			return
		}
		m.CreatedAt = meta.Timestamp.UTC()
		s.view.applyChat(meta.Sequence.Stream, m)
		topic = store.TopicChat
	default:
		s.view.skip(meta.Sequence.Stream)
		return
	}

	s.notifier.Notify(topic)
}

func (s *Store) publish(ctx context.Context, topic store.Topic, id uuid.UUID, payload any) (uint64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal %s payload: %w", topic, err)
	}

	msg := &nats.Msg{
		Subject: s.cfg.subject(topic),
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set("Content-Type", "application/json")

	ack, err := s.js.PublishMsg(ctx, msg,
		jetstream.WithMsgID(id.String()),
		jetstream.WithExpectStream(s.cfg.StreamName),
	)
	if err != nil {
		return 0, fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", msg.Subject).
		Str("id", id.String()).
		Uint64("sequence", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("published to JetStream")
	return ack.Sequence, nil
}

func (s *Store) AppendScore(ctx context.Context, rec *models.ScoreRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	seq, err := s.publish(ctx, store.TopicScores, rec.ID, rec)
	if err != nil {
		return err
	}
	if err := s.view.waitApplied(ctx, seq); err != nil {
		return fmt.Errorf("wait for score to apply: %w", err)
	}
	if stored, ok := s.view.score(rec.ID); ok {
		rec.CreatedAt = stored.CreatedAt
	}
	return nil
}

func (s *Store) TopScores(ctx context.Context, limit int) ([]models.ScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.view.topScores(limit), nil
}

func (s *Store) AppendChat(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	seq, err := s.publish(ctx, store.TopicChat, msg.ID, msg)
	if err != nil {
		return err
	}
	if err := s.view.waitApplied(ctx, seq); err != nil {
		return fmt.Errorf("wait for chat message to apply: %w", err)
	}
	if stored, ok := s.view.chatMessage(msg.ID); ok {
		msg.CreatedAt = stored.CreatedAt
	}
	return nil
}

func (s *Store) ListChat(ctx context.Context) ([]models.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.view.chatHistory(), nil
}

func (s *Store) Watch(ctx context.Context, topic store.Topic) (<-chan struct{}, error) {
	if err := store.CheckTopic(topic); err != nil {
		return nil, err
	}
	return s.notifier.Watch(ctx, topic), nil
}

// Close stops the consumer and closes the connection
func (s *Store) Close() error {
	s.consume.Stop()
	s.notifier.Close()
	s.nc.Close()
	return nil
}

// view is the materialised stream, in stream order
type view struct {
	mu        sync.Mutex
	applied   uint64
	appliedCh chan struct{}
	scores    []models.ScoreRecord
	chat      []models.ChatMessage
	scoreIdx  map[uuid.UUID]int
	chatIdx   map[uuid.UUID]int
}

func newView() *view {
	return &view{
		appliedCh: make(chan struct{}),
		scoreIdx:  make(map[uuid.UUID]int),
		chatIdx:   make(map[uuid.UUID]int),
	}
}

func (v *view) applyScore(seq uint64, rec models.ScoreRecord) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, dup := v.scoreIdx[rec.ID]; !dup {
		v.scoreIdx[rec.ID] = len(v.scores)
		v.scores = append(v.scores, rec)
	}
	v.advanceLocked(seq)
}

func (v *view) applyChat(seq uint64, msg models.ChatMessage) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, dup := v.chatIdx[msg.ID]; !dup {
		v.chatIdx[msg.ID] = len(v.chat)
		v.chat = append(v.chat, msg)
	}
	v.advanceLocked(seq)
}

func (v *view) skip(seq uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.advanceLocked(seq)
}

// advanceLocked records seq as applied and wakes every waiter
func (v *view) advanceLocked(seq uint64) {
	if seq > v.applied {
		v.applied = seq
	}
	close(v.appliedCh)
	v.appliedCh = make(chan struct{})
}

// waitApplied blocks until the view has caught up with seq
func (v *view) waitApplied(ctx context.Context, seq uint64) error {
	for {
		v.mu.Lock()
		if v.applied >= seq {
			v.mu.Unlock()
			return nil
		}
		ch := v.appliedCh
		v.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (v *view) score(id uuid.UUID) (models.ScoreRecord, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	i, ok := v.scoreIdx[id]
	if !ok {
		return models.ScoreRecord{}, false
	}
	return v.scores[i], true
}

func (v *view) chatMessage(id uuid.UUID) (models.ChatMessage, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	i, ok := v.chatIdx[id]
	if !ok {
		return models.ChatMessage{}, false
	}
	return v.chat[i], true
}

func (v *view) topScores(limit int) []models.ScoreRecord {
	v.mu.Lock()
	out := slices.Clone(v.scores)
	v.mu.Unlock()

	slices.SortStableFunc(out, func(a, b models.ScoreRecord) int {
		return b.Score - a.Score
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (v *view) chatHistory() []models.ChatMessage {
	v.mu.Lock()
	out := slices.Clone(v.chat)
	v.mu.Unlock()

	slices.SortStableFunc(out, func(a, b models.ChatMessage) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

var _ store.Backend = (*Store)(nil)
