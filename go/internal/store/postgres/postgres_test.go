package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/lomba/go/internal/models"
	"github.com/mcdev12/lomba/go/internal/store"
	"github.com/mcdev12/lomba/go/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("lomba"),
		tcpostgres.WithUsername("lomba"),
		tcpostgres.WithPassword("lomba"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func truncate(t *testing.T, dsn string) {
	t.Helper()
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	defer pool.Close()
	_, err = pool.Exec(context.Background(), `TRUNCATE scores, chat_messages`)
	require.NoError(t, err)
}

func TestBackend(t *testing.T) {
	dsn := startPostgres(t)

	storetest.Run(t, func(t *testing.T) store.Backend {
		s, err := Open(context.Background(), DefaultConfig(dsn))
		require.NoError(t, err)
		truncate(t, dsn)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestChangesFromAnotherProcessAreSeen(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	reader, err := Open(ctx, DefaultConfig(dsn))
	require.NoError(t, err)
	defer reader.Close()
	writer, err := Open(ctx, DefaultConfig(dsn))
	require.NoError(t, err)
	defer writer.Close()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	changes, err := reader.Watch(watchCtx, store.TopicChat)
	require.NoError(t, err)

	require.NoError(t, writer.AppendChat(ctx, &models.ChatMessage{Sender: "Budi", Text: "dari proses lain"}))

	select {
	case <-changes:
	case <-time.After(10 * time.Second):
		t.Fatal("reader never saw the writer's append")
	}

	history, err := reader.ListChat(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "dari proses lain", history[0].Text)
}
