package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mcdev12/lomba/go/internal/models"
	"github.com/mcdev12/lomba/go/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendTrimsAndDefaultsSender(t *testing.T) {
	c := NewClient(memstore.New(nil))

	msg, err := c.Send(context.Background(), "  ", "  merdeka!  ")
	require.NoError(t, err)
	assert.Equal(t, models.AnonymousSender, msg.Sender)
	assert.Equal(t, "merdeka!", msg.Text)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestSendRejectsEmptyText(t *testing.T) {
	s := memstore.New(nil)
	// a failing backend proves no remote call is made for empty text
	s.FailWith(errors.New("should not be called"))
	c := NewClient(s)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := c.Send(context.Background(), "Budi", text)
		assert.ErrorIs(t, err, models.ErrEmptyMessage)
	}
}

func TestSendAcceptsLongText(t *testing.T) {
	c := NewClient(memstore.New(nil))
	text := strings.Repeat("merdeka ", 200) + "!"

	msg, err := c.Send(context.Background(), "Budi", text)
	require.NoError(t, err)
	assert.Equal(t, text, msg.Text)

	history, err := c.History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, text, history[0].Text)
}

func TestSendWrapsTransportFailure(t *testing.T) {
	s := memstore.New(nil)
	s.FailWith(errors.New("offline"))
	c := NewClient(s)

	_, err := c.Send(context.Background(), "Budi", "halo")
	assert.True(t, models.IsTransport(err))
	_, err = c.History(context.Background())
	assert.True(t, models.IsTransport(err))
}

func TestSubscribeLiveOrdersByCreation(t *testing.T) {
	c := NewClient(memstore.New(nil))
	ctx := context.Background()

	var mu sync.Mutex
	var latest []models.ChatMessage
	sub, err := c.SubscribeLive(ctx, func(msgs []models.ChatMessage) {
		mu.Lock()
		defer mu.Unlock()
		latest = msgs
	})
	require.NoError(t, err)
	defer sub.Close()

	for _, text := range []string{"satu", "dua", "tiga"} {
		_, err := c.Send(ctx, "Ani", text)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(latest) == 3
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"satu", "dua", "tiga"}, []string{latest[0].Text, latest[1].Text, latest[2].Text})
}
