// Package storetest holds the behaviour every store.Backend must share.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/lomba/go/internal/models"
	"github.com/mcdev12/lomba/go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty backend for one subtest
type Factory func(t *testing.T) store.Backend

// Run exercises the ordering and watch contract of a backend
func Run(t *testing.T, newBackend Factory) {
	t.Run("AppendScoreAssignsIdentity", func(t *testing.T) {
		testAppendScoreAssignsIdentity(t, newBackend(t))
	})
	t.Run("TopScoresOrdering", func(t *testing.T) {
		testTopScoresOrdering(t, newBackend(t))
	})
	t.Run("TopScoresLimit", func(t *testing.T) {
		testTopScoresLimit(t, newBackend(t))
	})
	t.Run("ChatOrdering", func(t *testing.T) {
		testChatOrdering(t, newBackend(t))
	})
	t.Run("WatchSignalsAppends", func(t *testing.T) {
		testWatchSignalsAppends(t, newBackend(t))
	})
	t.Run("WatchRejectsUnknownTopic", func(t *testing.T) {
		b := newBackend(t)
		_, err := b.Watch(context.Background(), store.Topic("bogus"))
		assert.Error(t, err)
	})
}

func testAppendScoreAssignsIdentity(t *testing.T, b store.Backend) {
	ctx := context.Background()
	rec := &models.ScoreRecord{Participant: "Budi", Score: 10, GameKind: models.TimedMultipleChoice}

	require.NoError(t, b.AppendScore(ctx, rec))
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	top, err := b.TopScores(ctx, store.LeaderboardSize)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, rec.ID, top[0].ID)
	assert.Equal(t, "Budi", top[0].Participant)
	assert.Equal(t, 10, top[0].Score)
	assert.Equal(t, models.TimedMultipleChoice, top[0].GameKind)
	assert.WithinDuration(t, rec.CreatedAt, top[0].CreatedAt, time.Millisecond)
}

func testTopScoresOrdering(t *testing.T, b store.Backend) {
	ctx := context.Background()
	entries := []struct {
		name  string
		score int
	}{
		{"Ani", 5}, {"Budi", 30}, {"Citra", 30}, {"Dewi", 12}, {"Eka", 0},
	}
	for _, e := range entries {
		require.NoError(t, b.AppendScore(ctx, &models.ScoreRecord{
			Participant: e.name,
			Score:       e.score,
			GameKind:    models.ContinuousAvoidance,
		}))
	}

	top, err := b.TopScores(ctx, store.LeaderboardSize)
	require.NoError(t, err)

	var names []string
	for _, r := range top {
		names = append(names, r.Participant)
	}
	assert.Equal(t, []string{"Budi", "Citra", "Dewi", "Ani", "Eka"}, names)
}

func testTopScoresLimit(t *testing.T, b store.Backend) {
	ctx := context.Background()
	for i := range 15 {
		require.NoError(t, b.AppendScore(ctx, &models.ScoreRecord{
			Participant: fmt.Sprintf("player-%02d", i),
			Score:       i,
			GameKind:    models.TimedTypingMatch,
		}))
	}

	top, err := b.TopScores(ctx, store.LeaderboardSize)
	require.NoError(t, err)
	require.Len(t, top, store.LeaderboardSize)
	assert.Equal(t, 14, top[0].Score)
	assert.Equal(t, 5, top[len(top)-1].Score)
	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].Score, top[i].Score)
	}
}

func testChatOrdering(t *testing.T, b store.Backend) {
	ctx := context.Background()
	texts := []string{"halo", "merdeka!", "siapa mau main kuis?", "ayo"}
	for i, text := range texts {
		msg := &models.ChatMessage{Sender: fmt.Sprintf("user-%d", i), Text: text}
		require.NoError(t, b.AppendChat(ctx, msg))
		assert.NotEqual(t, uuid.Nil, msg.ID)
		assert.False(t, msg.CreatedAt.IsZero())
	}

	history, err := b.ListChat(ctx)
	require.NoError(t, err)
	require.Len(t, history, len(texts))
	for i, msg := range history {
		assert.Equal(t, texts[i], msg.Text)
		if i > 0 {
			assert.False(t, msg.CreatedAt.Before(history[i-1].CreatedAt))
		}
	}
}

func testWatchSignalsAppends(t *testing.T, b store.Backend) {
	ctx, cancel := context.WithCancel(context.Background())

	scores, err := b.Watch(ctx, store.TopicScores)
	require.NoError(t, err)
	chat, err := b.Watch(ctx, store.TopicChat)
	require.NoError(t, err)

	require.NoError(t, b.AppendChat(context.Background(), &models.ChatMessage{Sender: "Ani", Text: "halo"}))
	waitSignal(t, chat)

	require.NoError(t, b.AppendScore(context.Background(), &models.ScoreRecord{
		Participant: "Ani",
		Score:       3,
		GameKind:    models.ContinuousAvoidance,
	}))
	waitSignal(t, scores)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-scores:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case _, ok := <-ch:
		require.True(t, ok, "watch channel closed early")
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for change signal")
	}
}
