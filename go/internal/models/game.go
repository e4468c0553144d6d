package models

import (
	"fmt"
	"strings"
)

// GameKind identifies one of the three mini-games
type GameKind string

const (
	// ContinuousAvoidance is the side-scrolling drone race
	ContinuousAvoidance GameKind = "drone"
	// TimedMultipleChoice is the quiz blitz
	TimedMultipleChoice GameKind = "quiz"
	// TimedTypingMatch is the emoji sprint
	TimedTypingMatch GameKind = "emoji"
)

// DefaultGameKind is selected when a participant enters the arcade
const DefaultGameKind = ContinuousAvoidance

// GameKinds lists every playable kind in display order
var GameKinds = []GameKind{ContinuousAvoidance, TimedMultipleChoice, TimedTypingMatch}

// Valid reports whether k is one of the known kinds
func (k GameKind) Valid() bool {
	switch k {
	case ContinuousAvoidance, TimedMultipleChoice, TimedTypingMatch:
		return true
	}
	return false
}

func (k GameKind) String() string {
	return string(k)
}

// ParseGameKind parses the wire value of a game kind
func ParseGameKind(s string) (GameKind, error) {
	k := GameKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", &ValidationError{Field: "game_kind", Reason: fmt.Sprintf("unknown game kind %q", s)}
	}
	return k, nil
}

// Participant is the opaque identity of a player for one session
type Participant struct {
	ID       string `json:"id,omitempty"`
	Nickname string `json:"nickname"`
}

// NewParticipant trims the nickname and rejects blank ones
func NewParticipant(id, nickname string) (Participant, error) {
	nick := strings.TrimSpace(nickname)
	if nick == "" {
		return Participant{}, ErrBlankNickname
	}
	return Participant{ID: strings.TrimSpace(id), Nickname: nick}, nil
}
