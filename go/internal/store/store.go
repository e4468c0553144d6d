// Package store defines the remote collections the arcade reads and writes:
// an append-only score ledger and an append-only chat stream. Backends live
// in the subpackages.
package store

import (
	"context"
	"fmt"

	"github.com/mcdev12/lomba/go/internal/models"
)

// Topic names one remote collection
type Topic string

const (
	TopicScores Topic = "scores"
	TopicChat   Topic = "chat"
)

// Valid reports whether t is a known topic
func (t Topic) Valid() bool {
	return t == TopicScores || t == TopicChat
}

// LeaderboardSize is how many scores a leaderboard query returns
const LeaderboardSize = 10

// Backend is a remote store. Appends assign ID (when empty) and CreatedAt on
// the record they are given.
type Backend interface {
	AppendScore(ctx context.Context, rec *models.ScoreRecord) error
	// TopScores orders by score descending, ties by insertion order
	TopScores(ctx context.Context, limit int) ([]models.ScoreRecord, error)
	AppendChat(ctx context.Context, msg *models.ChatMessage) error
	// ListChat orders by creation ascending, ties by insertion order
	ListChat(ctx context.Context) ([]models.ChatMessage, error)
	// Watch signals after every change to topic. Signals coalesce, and the
	// channel is closed once ctx ends or the backend is closed.
	Watch(ctx context.Context, topic Topic) (<-chan struct{}, error)
	Close() error
}

// CheckTopic returns an error for unknown topics
func CheckTopic(topic Topic) error {
	if !topic.Valid() {
		return fmt.Errorf("unknown topic %q", topic)
	}
	return nil
}
