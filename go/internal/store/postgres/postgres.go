// Package postgres is a store.Backend on Postgres. Appends publish a
// NOTIFY so every arcade process sharing the database sees the change.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/lomba/go/internal/models"
	"github.com/mcdev12/lomba/go/internal/store"
	"github.com/rs/zerolog/log"
)

//go:embed schema.sql
var schema string

const (
	ScoresChannel = "lomba_scores"
	ChatChannel   = "lomba_chat"
)

// Config holds the Postgres backend settings
type Config struct {
	DSN          string
	PingInterval time.Duration
	// ResyncInterval signals every watcher periodically in case a
	// notification was lost while the listener was reconnecting
	ResyncInterval time.Duration
}

// DefaultConfig returns the backend settings for dsn
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:            dsn,
		PingInterval:   90 * time.Second,
		ResyncInterval: 30 * time.Second,
	}
}

// Store reads and writes through a pgx pool and learns about changes from a
// LISTEN connection.
type Store struct {
	pool     *pgxpool.Pool
	listener *Listener
	notifier *store.Notifier
	cancel   context.CancelFunc
	done     chan struct{}
}

// Open connects, applies the schema and starts listening for changes
func Open(ctx context.Context, cfg Config) (*Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	notifier := store.NewNotifier()
	listener, err := NewListener(cfg, notifier)
	if err != nil {
		pool.Close()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Store{
		pool:     pool,
		listener: listener,
		notifier: notifier,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		if err := listener.Start(runCtx); err != nil {
			log.Error().Err(err).Msg("postgres listener stopped")
		}
	}()

	return s, nil
}

func (s *Store) AppendScore(ctx context.Context, rec *models.ScoreRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO scores (id, participant, score, game_kind)
			 VALUES ($1, $2, $3, $4)
			 RETURNING created_at`,
			rec.ID, rec.Participant, rec.Score, string(rec.GameKind),
		).Scan(&rec.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert score: %w", err)
		}
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, ScoresChannel, rec.ID.String()); err != nil {
			return fmt.Errorf("notify score: %w", err)
		}
		return nil
	})
}

func (s *Store) TopScores(ctx context.Context, limit int) ([]models.ScoreRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, participant, score, game_kind, created_at
		 FROM scores
		 ORDER BY score DESC, seq ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query top scores: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ScoreRecord, error) {
		var (
			rec  models.ScoreRecord
			kind string
		)
		err := row.Scan(&rec.ID, &rec.Participant, &rec.Score, &kind, &rec.CreatedAt)
		rec.GameKind = models.GameKind(kind)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan top scores: %w", err)
	}
	return out, nil
}

func (s *Store) AppendChat(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO chat_messages (id, sender, text)
			 VALUES ($1, $2, $3)
			 RETURNING created_at`,
			msg.ID, msg.Sender, msg.Text,
		).Scan(&msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert chat message: %w", err)
		}
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, ChatChannel, msg.ID.String()); err != nil {
			return fmt.Errorf("notify chat message: %w", err)
		}
		return nil
	})
}

func (s *Store) ListChat(ctx context.Context) ([]models.ChatMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, sender, text, created_at
		 FROM chat_messages
		 ORDER BY created_at ASC, seq ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query chat: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ChatMessage, error) {
		var msg models.ChatMessage
		err := row.Scan(&msg.ID, &msg.Sender, &msg.Text, &msg.CreatedAt)
		return msg, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan chat: %w", err)
	}
	return out, nil
}

func (s *Store) Watch(ctx context.Context, topic store.Topic) (<-chan struct{}, error) {
	if err := store.CheckTopic(topic); err != nil {
		return nil, err
	}
	return s.notifier.Watch(ctx, topic), nil
}

// Close stops the listener, closes watchers and the pool
func (s *Store) Close() error {
	s.cancel()
	<-s.done
	s.notifier.Close()
	s.pool.Close()
	return nil
}

var _ store.Backend = (*Store)(nil)
