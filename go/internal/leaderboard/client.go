// Package leaderboard is the client for the shared score ledger
package leaderboard

import (
	"context"

	"github.com/mcdev12/lomba/go/internal/livequery"
	"github.com/mcdev12/lomba/go/internal/models"
	"github.com/mcdev12/lomba/go/internal/store"
	"github.com/rs/zerolog/log"
)

// Client appends scores and reads the top of the ledger
type Client struct {
	backend store.Backend
	size    int
}

// NewClient returns a leaderboard client showing the top store.LeaderboardSize entries
func NewClient(backend store.Backend) *Client {
	return &Client{
		backend: backend,
		size:    store.LeaderboardSize,
	}
}

// Append writes rec to the ledger. Invalid records never reach the backend.
func (c *Client) Append(ctx context.Context, rec models.ScoreRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := c.backend.AppendScore(ctx, &rec); err != nil {
		return &models.TransportError{Op: "append score", Err: err}
	}
	log.Debug().
		Str("id", rec.ID.String()).
		Str("participant", rec.Participant).
		Int("score", rec.Score).
		Msg("appended score")
	return nil
}

// Top returns the current leaderboard
func (c *Client) Top(ctx context.Context) ([]models.ScoreRecord, error) {
	recs, err := c.backend.TopScores(ctx, c.size)
	if err != nil {
		return nil, &models.TransportError{Op: "query top scores", Err: err}
	}
	return recs, nil
}

// SubscribeLive calls fn with the leaderboard now and after every change
func (c *Client) SubscribeLive(ctx context.Context, fn func([]models.ScoreRecord)) (*livequery.Subscription, error) {
	return livequery.Subscribe(ctx, c.backend, store.TopicScores, c.fetch, fn)
}

func (c *Client) fetch(ctx context.Context) ([]models.ScoreRecord, error) {
	return c.backend.TopScores(ctx, c.size)
}
