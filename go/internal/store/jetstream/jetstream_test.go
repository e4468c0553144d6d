package jetstream

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/lomba/go/internal/models"
	"github.com/mcdev12/lomba/go/internal/store"
	"github.com/mcdev12/lomba/go/internal/store/storetest"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startNATS(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping NATS container test in short mode")
	}

	ctx := context.Background()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.10-alpine",
			Cmd:          []string{"-js"},
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	url, err := ctr.PortEndpoint(ctx, "4222/tcp", "nats")
	require.NoError(t, err)
	return url
}

// testConfig gives every test its own stream so they never share state
func testConfig(url string) Config {
	cfg := DefaultConfig(url)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	cfg.StreamName = "LOMBA_" + strings.ToUpper(suffix)
	cfg.SubjectPrefix = "lomba_" + suffix
	cfg.Storage = jetstream.MemoryStorage
	return cfg
}

func TestBackend(t *testing.T) {
	url := startNATS(t)

	storetest.Run(t, func(t *testing.T) store.Backend {
		s, err := Open(context.Background(), testConfig(url))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestDuplicateAppendIsSuppressed(t *testing.T) {
	url := startNATS(t)
	ctx := context.Background()

	s, err := Open(ctx, testConfig(url))
	require.NoError(t, err)
	defer s.Close()

	rec := &models.ScoreRecord{ID: uuid.New(), Participant: "Budi", Score: 10, GameKind: models.TimedMultipleChoice}
	require.NoError(t, s.AppendScore(ctx, rec))
	again := *rec
	require.NoError(t, s.AppendScore(ctx, &again))

	top, err := s.TopScores(ctx, store.LeaderboardSize)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestSecondProcessReplaysStream(t *testing.T) {
	url := startNATS(t)
	ctx := context.Background()
	cfg := testConfig(url)

	first, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer first.Close()
	require.NoError(t, first.AppendChat(ctx, &models.ChatMessage{Sender: "Ani", Text: "halo"}))

	second, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer second.Close()

	require.Eventually(t, func() bool {
		history, err := second.ListChat(ctx)
		return err == nil && len(history) == 1
	}, 10*time.Second, 20*time.Millisecond)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	changes, err := second.Watch(watchCtx, store.TopicChat)
	require.NoError(t, err)

	require.NoError(t, first.AppendChat(ctx, &models.ChatMessage{Sender: "Ani", Text: "lagi"}))
	select {
	case <-changes:
	case <-time.After(10 * time.Second):
		t.Fatal("second process never saw the append")
	}
}
