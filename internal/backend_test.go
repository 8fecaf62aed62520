package internal

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func embeddedConfig(t *testing.T) Config {
	return Config{
		StoreBackend:   BackendEmbedded,
		BadgerFilepath: t.TempDir(),
		SnowflakeNode:  1,
		QueueSize:      16,
	}
}

func TestOpenBackend_Embedded_Round_Trip(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	backend, err := OpenBackend(ctx, embeddedConfig(t), slog.Default())
	req.NoError(err)
	defer backend.Close()

	// Given a live subscription
	var mu sync.Mutex
	var received []domain.Message
	sub, err := backend.Feed.Open(ctx, func(m domain.Message) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, m)
	})
	req.NoError(err)
	defer sub.Close()

	// When a message is inserted
	req.NoError(backend.Gateway.Insert(ctx, "Alice", "hello"))

	// Then it is both stored and delivered by the feed
	req.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 5*time.Millisecond)
	history, err := backend.Gateway.FetchHistory(ctx)
	req.NoError(err)
	req.Len(history, 1)
	mu.Lock()
	req.Equal(history[0], received[0])
	mu.Unlock()
}

func TestOpenBackend_Unknown(t *testing.T) {
	_, err := OpenBackend(context.Background(), Config{StoreBackend: "sqlite"}, slog.Default())

	require.ErrorIs(t, err, errors.ErrUnknownBackend)
}
