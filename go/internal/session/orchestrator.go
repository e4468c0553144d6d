// Package session coordinates one participant's play: which game is selected,
// the active game session and its tick driver, and handing finished scores to
// the ledger.
package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/lomba/go/internal/game"
	"github.com/mcdev12/lomba/go/internal/models"
	"github.com/rs/zerolog/log"
)

var (
	// ErrGameInProgress is returned when switching games while one is running
	ErrGameInProgress = errors.New("a game is already in progress")
	// ErrClosed is returned by operations on a closed orchestrator
	ErrClosed = errors.New("session orchestrator is closed")
)

// ScoreSink accepts finished scores without blocking
type ScoreSink interface {
	Record(rec models.ScoreRecord) bool
}

// Config holds the per-orchestrator game settings
type Config struct {
	FrameInterval time.Duration
	Questions     []game.Question
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		FrameInterval: game.DefaultFrameInterval,
		Questions:     game.DefaultQuestions(),
	}
}

// Snapshot is the participant-level view rendered by clients
type Snapshot struct {
	Participant models.Participant `json:"participant"`
	Kind        models.GameKind    `json:"kind"`
	LastScore   *int               `json:"last_score,omitempty"`
	Game        *game.Snapshot     `json:"game,omitempty"`
}

// Option customises an Orchestrator
type Option func(*Orchestrator)

// WithClock sets the clock used for sessions and tick drivers
func WithClock(clock clockwork.Clock) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithRand sets the random source handed to new game rules
func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) { o.rng = rng }
}

// WithUpdateHandler registers fn to be called after every state change.
// fn runs with the orchestrator locked and must not call back into it.
func WithUpdateHandler(fn func(Snapshot)) Option {
	return func(o *Orchestrator) { o.onUpdate = fn }
}

// WithResultHandler registers fn to be called once per finished game
func WithResultHandler(fn func(game.Result)) Option {
	return func(o *Orchestrator) { o.onResult = fn }
}

// Orchestrator owns the active game session for one participant
type Orchestrator struct {
	participant models.Participant
	sink        ScoreSink
	config      Config
	clock       clockwork.Clock
	rng         *rand.Rand
	onUpdate    func(Snapshot)
	onResult    func(game.Result)

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	kind      models.GameKind
	session   *game.Session
	driver    *game.Driver
	lastScore *int
	closed    bool
}

// New creates an orchestrator for participant. The nickname is trimmed and
// must not be blank.
func New(participant models.Participant, sink ScoreSink, config Config, opts ...Option) (*Orchestrator, error) {
	p, err := models.NewParticipant(participant.ID, participant.Nickname)
	if err != nil {
		return nil, err
	}
	if config.FrameInterval <= 0 {
		config.FrameInterval = game.DefaultFrameInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		participant: p,
		sink:        sink,
		config:      config,
		clock:       clockwork.NewRealClock(),
		kind:        models.DefaultGameKind,
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Participant returns the immutable identity of this orchestrator
func (o *Orchestrator) Participant() models.Participant {
	return o.participant
}

// SelectGame switches to kind and starts a fresh session of it. Switching is
// refused while a session is running; selecting the running kind is a no-op.
func (o *Orchestrator) SelectGame(kind models.GameKind) error {
	if !kind.Valid() {
		return &models.ValidationError{Field: "game_kind", Reason: "unknown game " + string(kind)}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	if o.session != nil && o.session.Running() {
		if o.session.Kind() == kind {
			return nil
		}
		log.Info().
			Str("nickname", o.participant.Nickname).
			Str("running", o.session.Kind().String()).
			Str("requested", kind.String()).
			Msg("ignoring game switch while a game is running")
		return ErrGameInProgress
	}

	o.kind = kind
	return o.startLocked()
}

// Start begins a fresh session of the selected kind
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	return o.startLocked()
}

// Replay replaces the current session with a fresh one of the same kind. A
// running session is discarded without recording its score.
func (o *Orchestrator) Replay() error {
	return o.Start()
}

// Input forwards in to the active session
func (o *Orchestrator) Input(in game.Input) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.session == nil || !o.session.Running() {
		return
	}
	o.session.Apply(in)
	o.notifyLocked()
}

// Snapshot returns the current view
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Close stops the active driver. Later ticks and inputs are ignored.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true
	o.stopDriverLocked()
	o.cancel()
}

func (o *Orchestrator) startLocked() error {
	o.stopDriverLocked()

	rules, err := game.NewRules(o.kind, game.Options{
		Questions: o.config.Questions,
		Rand:      o.rng,
	})
	if err != nil {
		return err
	}

	sess := game.NewSession(rules, o.clock, o.onTerminal)
	o.session = sess

	id := sess.ID()
	o.driver = game.StartDriver(o.ctx, o.clock, sess.Cadence(), o.config.FrameInterval, func(delta time.Duration) {
		o.tick(id, delta)
	})

	log.Debug().
		Str("nickname", o.participant.Nickname).
		Str("game_kind", o.kind.String()).
		Str("session_id", id.String()).
		Msg("game session started")

	o.notifyLocked()
	return nil
}

// tick advances the session identified by id; ticks for replaced sessions are dropped
func (o *Orchestrator) tick(id uuid.UUID, delta time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.session == nil || o.session.ID() != id || !o.session.Running() {
		return
	}
	o.session.Tick(delta)
	o.notifyLocked()
}

// onTerminal runs inside Tick or Apply, with the lock held
func (o *Orchestrator) onTerminal(result game.Result) {
	o.stopDriverLocked()

	score := result.Score
	o.lastScore = &score

	rec := models.ScoreRecord{
		Participant: o.participant.Nickname,
		Score:       result.Score,
		GameKind:    result.Kind,
		CreatedAt:   result.EndedAt,
	}

	log.Info().
		Str("nickname", o.participant.Nickname).
		Str("game_kind", result.Kind.String()).
		Int("score", result.Score).
		Msg("game over")

	if o.sink != nil && !o.sink.Record(rec) {
		log.Warn().Str("nickname", o.participant.Nickname).Msg("score was not queued")
	}
	if o.onResult != nil {
		o.onResult(result)
	}
}

func (o *Orchestrator) stopDriverLocked() {
	if o.driver != nil {
		o.driver.Stop()
		o.driver = nil
	}
}

func (o *Orchestrator) notifyLocked() {
	if o.onUpdate != nil {
		o.onUpdate(o.snapshotLocked())
	}
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	snap := Snapshot{
		Participant: o.participant,
		Kind:        o.kind,
	}
	if o.lastScore != nil {
		score := *o.lastScore
		snap.LastScore = &score
	}
	if o.session != nil {
		gs := o.session.Snapshot()
		snap.Game = &gs
	}
	return snap
}
