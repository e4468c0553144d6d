package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/lomba/go/internal/chat"
	"github.com/mcdev12/lomba/go/internal/config"
	"github.com/mcdev12/lomba/go/internal/game"
	"github.com/mcdev12/lomba/go/internal/gateway"
	"github.com/mcdev12/lomba/go/internal/identity"
	"github.com/mcdev12/lomba/go/internal/leaderboard"
	"github.com/mcdev12/lomba/go/internal/session"
	"github.com/mcdev12/lomba/go/internal/store"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Services struct {
	Recorder *session.Recorder
	Gateway  *gateway.Service
}

func setupServices(cfg config.Config, backend store.Backend) (*Services, error) {
	// Wire up dependency injection chain
	// Store → Clients → Recorder → Gateway
	clock := clockwork.NewRealClock()

	questions := game.DefaultQuestions()
	if cfg.QuestionsFile != "" {
		loaded, err := game.LoadQuestionsFile(cfg.QuestionsFile)
		if err != nil {
			return nil, err
		}
		questions = loaded
		log.Info().
			Str("path", cfg.QuestionsFile).
			Int("questions", len(questions)).
			Msg("loaded question bank")
	}

	idp, err := identity.NewProvider(identity.Config{
		Secret: []byte(cfg.TokenSecret),
		TTL:    cfg.TokenTTL,
	}, clock)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity provider: %w", err)
	}

	lb := leaderboard.NewClient(backend)
	ch := chat.NewClient(backend)

	recorderCfg := session.DefaultRecorderConfig()
	recorderCfg.Workers = cfg.ScoreWorkers
	recorder := session.NewRecorder(lb, recorderCfg)

	gatewayCfg := gateway.DefaultConfig()
	gatewayCfg.Session = session.Config{
		FrameInterval: cfg.FrameInterval,
		Questions:     questions,
	}

	gw := gateway.NewService(gatewayCfg, gateway.Dependencies{
		Leaderboard: lb,
		Chat:        ch,
		Identity:    idp,
		Scores:      recorder,
		Clock:       clock,
	})

	return &Services{
		Recorder: recorder,
		Gateway:  gw,
	}, nil
}

// Run runs the background services until ctx ends or one of them fails
func (s *Services) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.Recorder.Run(ctx)
	})
	g.Go(func() error {
		return s.Gateway.Start(ctx)
	})

	err := g.Wait()

	stats := s.Recorder.Stats()
	log.Info().
		Int64("written", stats.Written).
		Int64("failed", stats.Failed).
		Int64("dropped", stats.Dropped).
		Msg("background services stopped")
	return err
}
