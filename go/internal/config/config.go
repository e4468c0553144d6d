// Package config loads the arcade server settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// Backend selects the store implementation
type Backend string

const (
	BackendMemory    Backend = "memory"
	BackendSQLite    Backend = "sqlite"
	BackendPostgres  Backend = "postgres"
	BackendJetStream Backend = "jetstream"
)

// Log output formats
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Config holds the server settings
type Config struct {
	Port          string        `env:"PORT" envDefault:"8080"`
	Backend       Backend       `env:"LOMBA_BACKEND" envDefault:"memory"`
	SQLitePath    string        `env:"SQLITE_PATH" envDefault:"lomba.db"`
	NATSURL       string        `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	TokenSecret   string        `env:"TOKEN_SECRET"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	QuestionsFile string        `env:"QUESTIONS_FILE"`
	FrameInterval time.Duration `env:"FRAME_INTERVAL" envDefault:"16ms"`
	ScoreWorkers  int           `env:"SCORE_WORKERS" envDefault:"4"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string        `env:"LOG_FORMAT" envDefault:"console"`
}

// Load parses the environment and validates the result
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendSQLite, BackendPostgres, BackendJetStream:
	default:
		return fmt.Errorf("unknown LOMBA_BACKEND %q", c.Backend)
	}
	if c.Backend == BackendSQLite && c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
	}
	if c.Backend == BackendJetStream && c.NATSURL == "" {
		return fmt.Errorf("NATS_URL is required for the jetstream backend")
	}
	if c.FrameInterval <= 0 {
		return fmt.Errorf("FRAME_INTERVAL must be positive, got %s", c.FrameInterval)
	}
	if c.ScoreWorkers <= 0 {
		return fmt.Errorf("SCORE_WORKERS must be positive, got %d", c.ScoreWorkers)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case LogFormatConsole, LogFormatJSON:
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

// Level parses LOG_LEVEL
func (c Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}
