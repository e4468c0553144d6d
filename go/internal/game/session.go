// Package game holds the per-kind game state machines. Every mini-game is a
// Session driven by a Rules variant: the Session owns status, score and the
// terminal emission, the Rules own the per-kind state and transitions.
package game

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/lomba/go/internal/models"
)

// Status is the lifecycle state of a session
type Status string

const (
	StatusRunning Status = "running"
	StatusEnded   Status = "ended"
)

// Cadence tells the orchestrator which tick driver a rules variant needs
type Cadence int

const (
	// CadenceFrame ticks as fast as the frame interval allows, with measured deltas
	CadenceFrame Cadence = iota
	// CadenceSecond ticks once per second with a fixed one-second delta
	CadenceSecond
)

// Action is the kind of input event a player sends
type Action string

const (
	ActionMoveUp   Action = "up"
	ActionMoveDown Action = "down"
	ActionChoose   Action = "choose"
	ActionType     Action = "type"
)

// Input is a single discrete input event
type Input struct {
	Action Action `json:"action"`
	Option int    `json:"option,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Rules is the per-kind part of a session. Tick and Apply are only called
// while the session is running.
type Rules interface {
	Kind() models.GameKind
	Cadence() Cadence
	Tick(s *Session, delta time.Duration)
	Apply(s *Session, in Input)
	State() any
}

// Result is the terminal score of a session, emitted exactly once
type Result struct {
	SessionID uuid.UUID       `json:"session_id"`
	Kind      models.GameKind `json:"kind"`
	Score     int             `json:"score"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   time.Time       `json:"ended_at"`
}

// Snapshot is a read-only view of a session for rendering
type Snapshot struct {
	SessionID    uuid.UUID       `json:"session_id"`
	Kind         models.GameKind `json:"kind"`
	Status       Status          `json:"status"`
	Score        float64         `json:"score"`
	DisplayScore int             `json:"display_score"`
	StartedAt    time.Time       `json:"started_at"`
	State        any             `json:"state"`
}

// Session is one play-through of a mini-game
type Session struct {
	id        uuid.UUID
	rules     Rules
	clock     clockwork.Clock
	onEnd     func(Result)
	status    Status
	score     float64
	startedAt time.Time
	endedAt   time.Time
}

// NewSession starts a running session for rules. onEnd may be nil.
func NewSession(rules Rules, clock clockwork.Clock, onEnd func(Result)) *Session {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Session{
		id:        uuid.New(),
		rules:     rules,
		clock:     clock,
		onEnd:     onEnd,
		status:    StatusRunning,
		startedAt: clock.Now(),
	}
}

func (s *Session) ID() uuid.UUID { return s.id }
func (s *Session) Kind() models.GameKind { return s.rules.Kind() }
func (s *Session) Cadence() Cadence { return s.rules.Cadence() }
func (s *Session) Status() Status { return s.status }
func (s *Session) Running() bool { return s.status == StatusRunning }
func (s *Session) StartedAt() time.Time { return s.startedAt }
func (s *Session) RawScore() float64 { return s.score }
func (s *Session) Score() int { return int(math.Floor(s.score)) }

// Tick advances the session by delta. Ticks on an ended session are ignored.
func (s *Session) Tick(delta time.Duration) {
	if s.status != StatusRunning || delta < 0 {
		return
	}
	s.rules.Tick(s, delta)
}

// Apply feeds an input event. Inputs on an ended session are ignored.
func (s *Session) Apply(in Input) {
	if s.status != StatusRunning {
		return
	}
	s.rules.Apply(s, in)
}

// Snapshot returns the current view of the session
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		SessionID:    s.id,
		Kind:         s.rules.Kind(),
		Status:       s.status,
		Score:        s.score,
		DisplayScore: s.Score(),
		StartedAt:    s.startedAt,
		State:        s.rules.State(),
	}
}

// award adds points while running; the score never decreases
func (s *Session) award(points float64) {
	if s.status != StatusRunning || !(points > 0) || math.IsInf(points, 0) {
		return
	}
	s.score += points
}

// end freezes the session and emits the terminal score. Only the first call
// has any effect.
func (s *Session) end() {
	if s.status == StatusEnded {
		return
	}
	s.status = StatusEnded
	s.endedAt = s.clock.Now()
	if s.onEnd != nil {
		s.onEnd(Result{
			SessionID: s.id,
			Kind:      s.rules.Kind(),
			Score:     s.Score(),
			StartedAt: s.startedAt,
			EndedAt:   s.endedAt,
		})
	}
}
