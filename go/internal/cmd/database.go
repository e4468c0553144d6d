package main

import (
	"context"
	"fmt"

	"github.com/mcdev12/lomba/go/internal/config"
	"github.com/mcdev12/lomba/go/internal/dbconfig"
	"github.com/mcdev12/lomba/go/internal/store"
	"github.com/mcdev12/lomba/go/internal/store/jetstream"
	"github.com/mcdev12/lomba/go/internal/store/memstore"
	"github.com/mcdev12/lomba/go/internal/store/postgres"
	"github.com/mcdev12/lomba/go/internal/store/sqlite"
	"github.com/rs/zerolog/log"
)

func openBackend(ctx context.Context, cfg config.Config) (store.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		log.Warn().Msg("using the in-memory store, scores and chat are lost on restart")
		return memstore.New(nil), nil

	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("connected to sqlite store")
		return s, nil

	case config.BackendPostgres:
		dbCfg, err := dbconfig.NewConfigFromEnv()
		if err != nil {
			return nil, err
		}
		s, err := postgres.Open(ctx, postgres.DefaultConfig(dbCfg.DSN()))
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("host", dbCfg.Host).
			Int("port", dbCfg.Port).
			Str("database", dbCfg.Database).
			Msg("connected to postgres store")
		return s, nil

	case config.BackendJetStream:
		s, err := jetstream.Open(ctx, jetstream.DefaultConfig(cfg.NATSURL))
		if err != nil {
			return nil, err
		}
		log.Info().Str("nats_url", cfg.NATSURL).Msg("connected to jetstream store")
		return s, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
