// Package gateway serves the arcade to browsers: one WebSocket per player
// driving that player's session, live leaderboard and chat feeds broadcast
// to everyone, and a small Connect RPC surface.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/lomba/go/internal/chat"
	"github.com/mcdev12/lomba/go/internal/game"
	"github.com/mcdev12/lomba/go/internal/identity"
	"github.com/mcdev12/lomba/go/internal/leaderboard"
	"github.com/mcdev12/lomba/go/internal/session"
	"github.com/rs/zerolog/log"
)

// Config holds configuration for the arcade gateway
type Config struct {
	ConnectionConfig ConnectionConfig
	Session          session.Config
}

// DefaultConfig returns default configuration for the arcade gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		Session:          session.DefaultConfig(),
	}
}

// Dependencies are the clients the gateway serves
type Dependencies struct {
	Leaderboard *leaderboard.Client
	Chat        *chat.Client
	Identity    *identity.Provider
	Scores      session.ScoreSink
	Clock       clockwork.Clock
}

// Service is the arcade gateway
type Service struct {
	config            Config
	deps              Dependencies
	connectionManager *ConnectionManager
	feed              *feed
	identity          *identity.Provider
	rpc               *ArcadeService

	mu      sync.Mutex
	players map[*Connection]*Player
}

// NewService creates a new arcade gateway
func NewService(config Config, deps Dependencies) *Service {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	cm := NewConnectionManager(config.ConnectionConfig)
	return &Service{
		config:            config,
		deps:              deps,
		connectionManager: cm,
		feed:              newFeed(cm, deps.Leaderboard, deps.Chat),
		identity:          deps.Identity,
		rpc:               NewArcadeService(deps.Identity, deps.Leaderboard, deps.Chat),
		players:           make(map[*Connection]*Player),
	}
}

// Start subscribes to the feeds and serves broadcasts until ctx ends
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting arcade gateway")

	if err := s.feed.start(ctx); err != nil {
		return fmt.Errorf("failed to start feeds: %w", err)
	}

	s.connectionManager.Start(ctx)

	log.Info().Msg("arcade gateway shutting down")
	return s.Stop()
}

// Stop closes the feeds
func (s *Service) Stop() error {
	s.feed.stop()
	log.Info().Msg("arcade gateway stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and RPC routes
func (s *Service) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws/arcade", s.HandleArcadeConnection).Methods(http.MethodGet)
	r.HandleFunc("/ws/stats", s.HandleConnectionStats).Methods(http.MethodGet)

	path, handler := NewArcadeServiceHandler(s.rpc)
	r.PathPrefix(path).Handler(handler)

	log.Info().Str("rpc_path", path).Msg("arcade gateway routes registered")
}

// GetStats returns statistics about the connected players
func (s *Service) GetStats() ConnectionStats {
	s.mu.Lock()
	players := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, p)
	}
	s.mu.Unlock()

	stats := ConnectionStats{
		TotalConnections: s.connectionManager.Count(),
		GamesByKind:      make(map[string]int),
	}
	for _, p := range players {
		snap := p.orch.Snapshot()
		if snap.Game != nil && snap.Game.Status == game.StatusRunning {
			stats.ActiveGames++
			stats.GamesByKind[snap.Kind.String()]++
		}
	}
	return stats
}

// join creates the player for conn and starts serving it
func (s *Service) join(conn *Connection) error {
	p := &Player{conn: conn, chat: s.deps.Chat}

	orch, err := session.New(conn.Participant, s.deps.Scores, s.config.Session,
		session.WithClock(s.deps.Clock),
		session.WithUpdateHandler(p.onUpdate),
		session.WithResultHandler(p.onResult),
	)
	if err != nil {
		return err
	}
	p.orch = orch

	s.mu.Lock()
	s.players[conn] = p
	s.mu.Unlock()

	conn.Send(MessageWelcome, orch.Snapshot())

	s.feed.join(conn, func() {
		s.connectionManager.Register(conn, p.handleMessage, func(c *Connection) {
			p.onClose(c)
			s.mu.Lock()
			delete(s.players, c)
			s.mu.Unlock()
		})
	})
	return nil
}
