package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/mcdev12/lomba/go/internal/store"
	"github.com/rs/zerolog/log"
)

var channelTopics = map[string]store.Topic{
	ScoresChannel: store.TopicScores,
	ChatChannel:   store.TopicChat,
}

// Listener turns Postgres notifications into notifier signals
type Listener struct {
	listener *pq.Listener
	notifier *store.Notifier
	cfg      Config
}

// NewListener opens a LISTEN connection on both change channels
func NewListener(cfg Config, notifier *store.Notifier) (*Listener, error) {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultConfig(cfg.DSN).PingInterval
	}
	if cfg.ResyncInterval <= 0 {
		cfg.ResyncInterval = DefaultConfig(cfg.DSN).ResyncInterval
	}

	l := pq.NewListener(
		cfg.DSN,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Int("event", int(ev)).Msg("postgres listener event")
			}
		},
	)
	for channel := range channelTopics {
		if err := l.Listen(channel); err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("failed to listen to channel %s: %w", channel, err)
		}
	}

	log.Info().
		Str("scores_channel", ScoresChannel).
		Str("chat_channel", ChatChannel).
		Msg("listening for notifications")

	return &Listener{
		listener: l,
		notifier: notifier,
		cfg:      cfg,
	}, nil
}

// Start relays notifications until ctx ends
func (l *Listener) Start(ctx context.Context) error {
	pingTicker := time.NewTicker(l.cfg.PingInterval)
	resyncTicker := time.NewTicker(l.cfg.ResyncInterval)
	defer pingTicker.Stop()
	defer resyncTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("postgres listener shutting down")
			return l.listener.Close()
		case note := <-l.listener.Notify:
			if note == nil {
				// reconnected; anything could have changed meanwhile
				l.notifyAll()
				continue
			}
			topic, ok := channelTopics[note.Channel]
			if !ok {
				log.Warn().Str("channel", note.Channel).Msg("notification on unexpected channel")
				continue
			}
			l.notifier.Notify(topic)
		case <-resyncTicker.C:
			l.notifyAll()
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (l *Listener) notifyAll() {
	for _, topic := range channelTopics {
		l.notifier.Notify(topic)
	}
}
