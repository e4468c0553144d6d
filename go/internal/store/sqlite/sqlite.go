// Package sqlite is a store.Backend on an embedded SQLite database, for a
// single arcade process that should keep its leaderboard across restarts.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/lomba/go/internal/models"
	"github.com/mcdev12/lomba/go/internal/store"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// nowMillis is evaluated by SQLite so CreatedAt is the database clock
const nowMillis = `CAST(ROUND((julianday('now') - 2440587.5) * 86400000) AS INTEGER)`

// Store persists both collections in one SQLite file
type Store struct {
	db       *sql.DB
	notifier *store.Notifier
}

// Open opens (creating if needed) the database at path and applies the schema
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer keeps AUTOINCREMENT order equal to append order
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	log.Info().Str("path", path).Msg("opened sqlite store")
	return &Store{
		db:       db,
		notifier: store.NewNotifier(),
	}, nil
}

func (s *Store) AppendScore(ctx context.Context, rec *models.ScoreRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO scores (id, participant, score, game_kind, created_at)
		 VALUES (?, ?, ?, ?, `+nowMillis+`)
		 RETURNING created_at`,
		rec.ID.String(), rec.Participant, rec.Score, string(rec.GameKind),
	).Scan(&createdAt)
	if err != nil {
		return fmt.Errorf("insert score: %w", err)
	}
	rec.CreatedAt = fromMillis(createdAt)

	s.notifier.Notify(store.TopicScores)
	return nil
}

func (s *Store) TopScores(ctx context.Context, limit int) ([]models.ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, participant, score, game_kind, created_at
		 FROM scores
		 ORDER BY score DESC, seq ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query top scores: %w", err)
	}
	defer rows.Close()

	var out []models.ScoreRecord
	for rows.Next() {
		var (
			rec       models.ScoreRecord
			id        string
			kind      string
			createdAt int64
		)
		if err := rows.Scan(&id, &rec.Participant, &rec.Score, &kind, &createdAt); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse score id: %w", err)
		}
		rec.GameKind = models.GameKind(kind)
		rec.CreatedAt = fromMillis(createdAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scores: %w", err)
	}
	return out, nil
}

func (s *Store) AppendChat(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO chat_messages (id, sender, text, created_at)
		 VALUES (?, ?, ?, `+nowMillis+`)
		 RETURNING created_at`,
		msg.ID.String(), msg.Sender, msg.Text,
	).Scan(&createdAt)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	msg.CreatedAt = fromMillis(createdAt)

	s.notifier.Notify(store.TopicChat)
	return nil
}

func (s *Store) ListChat(ctx context.Context) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender, text, created_at
		 FROM chat_messages
		 ORDER BY created_at ASC, seq ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query chat: %w", err)
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var (
			msg       models.ChatMessage
			id        string
			createdAt int64
		)
		if err := rows.Scan(&id, &msg.Sender, &msg.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		if msg.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse chat id: %w", err)
		}
		msg.CreatedAt = fromMillis(createdAt)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat: %w", err)
	}
	return out, nil
}

func (s *Store) Watch(ctx context.Context, topic store.Topic) (<-chan struct{}, error) {
	if err := store.CheckTopic(topic); err != nil {
		return nil, err
	}
	return s.notifier.Watch(ctx, topic), nil
}

// Close closes watchers and the database handle
func (s *Store) Close() error {
	s.notifier.Close()
	return s.db.Close()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ store.Backend = (*Store)(nil)
