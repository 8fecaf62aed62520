package feed

import (
	"chat-sync/domain"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPostgresSubscriber_Handle_Payload(t *testing.T) {
	req := require.New(t)
	subscriber := NewPostgresSubscriber(nil, "messages_inserted", slog.Default())
	sub := newSubscription(func() {})
	var delivered []domain.Message
	onMessage := func(message domain.Message) { delivered = append(delivered, message) }

	// When a row_to_json payload and a malformed one arrive
	subscriber.handle(sub, onMessage, `{"id":3,"username":"Alice","message":"hey","created_at":"2025-01-01T09:00:30.5+00:00"}`)
	subscriber.handle(sub, onMessage, `{"id":"oops"}`)

	// Then only the valid record is delivered
	req.Len(delivered, 1)
	req.Equal(int64(3), delivered[0].ID)
	req.Equal("Alice", delivered[0].Author)
	req.True(time.Date(2025, 1, 1, 9, 0, 30, 500000000, time.UTC).Equal(delivered[0].CreatedAt))
}
