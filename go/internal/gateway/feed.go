package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/mcdev12/lomba/go/internal/chat"
	"github.com/mcdev12/lomba/go/internal/leaderboard"
	"github.com/mcdev12/lomba/go/internal/livequery"
	"github.com/mcdev12/lomba/go/internal/models"
	"github.com/rs/zerolog/log"
)

// feed holds the process-wide leaderboard and chat live queries and the
// latest snapshot of each
type feed struct {
	cm          *ConnectionManager
	leaderboard *leaderboard.Client
	chat        *chat.Client

	mu         sync.Mutex
	topScores  []models.ScoreRecord
	history    []models.ChatMessage
	scoresSub  *livequery.Subscription
	historySub *livequery.Subscription
}

func newFeed(cm *ConnectionManager, lb *leaderboard.Client, ch *chat.Client) *feed {
	return &feed{cm: cm, leaderboard: lb, chat: ch}
}

func (f *feed) start(ctx context.Context) error {
	scoresSub, err := f.leaderboard.SubscribeLive(ctx, func(recs []models.ScoreRecord) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.topScores = recs
		f.cm.Broadcast(MessageLeaderboard, recs)
	})
	if err != nil {
		return fmt.Errorf("subscribe to leaderboard: %w", err)
	}

	historySub, err := f.chat.SubscribeLive(ctx, func(msgs []models.ChatMessage) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.history = msgs
		f.cm.Broadcast(MessageChatHistory, msgs)
	})
	if err != nil {
		scoresSub.Close()
		return fmt.Errorf("subscribe to chat: %w", err)
	}

	f.mu.Lock()
	f.scoresSub = scoresSub
	f.historySub = historySub
	f.mu.Unlock()

	log.Info().Msg("leaderboard and chat feeds started")
	return nil
}

// join registers a connection for broadcasts and sends it the current
// feeds. Both happen under the feed lock, so every snapshot cached after
// this point is also broadcast to conn.
func (f *feed) join(conn *Connection, register func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	register()

	scores, history := f.topScores, f.history
	if scores == nil {
		scores = []models.ScoreRecord{}
	}
	if history == nil {
		history = []models.ChatMessage{}
	}
	conn.Send(MessageLeaderboard, scores)
	conn.Send(MessageChatHistory, history)
}

func (f *feed) stop() {
	f.mu.Lock()
	scoresSub, historySub := f.scoresSub, f.historySub
	f.scoresSub, f.historySub = nil, nil
	f.mu.Unlock()

	if scoresSub != nil {
		scoresSub.Close()
	}
	if historySub != nil {
		historySub.Close()
	}
}
