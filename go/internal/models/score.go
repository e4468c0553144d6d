package models

import (
	"time"

	"github.com/google/uuid"
)

// ScoreRecord is one completed game posted to the leaderboard
type ScoreRecord struct {
	ID          uuid.UUID `json:"id"`
	Participant string    `json:"participant"`
	Score       int       `json:"score"`
	GameKind    GameKind  `json:"game_kind"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the fields a client is responsible for
func (r ScoreRecord) Validate() error {
	if r.Score < 0 {
		return &ValidationError{Field: "score", Reason: "must not be negative"}
	}
	if !r.GameKind.Valid() {
		return &ValidationError{Field: "game_kind", Reason: "unknown game kind"}
	}
	return nil
}
