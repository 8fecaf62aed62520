package feed

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

type collector struct {
	mu       sync.Mutex
	messages []domain.Message
}

func (c *collector) add(message domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
}

func (c *collector) ids() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int64, 0, len(c.messages))
	for _, m := range c.messages {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestBroadcaster_Delivers_In_Publish_Order(t *testing.T) {
	req := require.New(t)
	broadcaster := NewBroadcaster(slog.Default(), 16)
	c := &collector{}

	// Given an open subscription
	sub, err := broadcaster.Open(context.Background(), c.add)
	req.NoError(err)
	defer sub.Close()

	// When three messages are published
	for id := int64(1); id <= 3; id++ {
		broadcaster.Publish(domain.Message{ID: id, Author: "Alice", Body: "hi"})
	}

	// Then they arrive in order
	req.Eventually(func() bool { return len(c.ids()) == 3 }, time.Second, 5*time.Millisecond)
	req.Equal([]int64{1, 2, 3}, c.ids())
}

func TestBroadcaster_Close_Stops_Delivery(t *testing.T) {
	req := require.New(t)
	broadcaster := NewBroadcaster(slog.Default(), 16)
	c := &collector{}
	sub, err := broadcaster.Open(context.Background(), c.add)
	req.NoError(err)

	// When the subscription is closed twice
	req.NoError(sub.Close())
	req.NoError(sub.Close())

	// Then no later message is delivered and no error is reported
	broadcaster.Publish(domain.Message{ID: 1})
	time.Sleep(20 * time.Millisecond)
	req.Empty(c.ids())
	req.NoError(sub.Err())
	req.Equal(0, broadcaster.Subscribers())
	select {
	case <-sub.Done():
	default:
		req.Fail("done channel should be closed")
	}
}

func TestBroadcaster_Slow_Subscriber_Is_Disconnected(t *testing.T) {
	req := require.New(t)
	broadcaster := NewBroadcaster(slog.Default(), 1)
	release := make(chan struct{})
	sub, err := broadcaster.Open(context.Background(), func(domain.Message) { <-release })
	req.NoError(err)

	// When more messages are published than the subscriber can buffer
	for id := int64(1); id <= 5; id++ {
		broadcaster.Publish(domain.Message{ID: id})
	}

	// Then the subscriber is dropped with a disconnect error
	close(release)
	req.Eventually(func() bool {
		select {
		case <-sub.Done():
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	req.ErrorIs(sub.Err(), errors.ErrFeedDisconnected)
}

func TestBroadcaster_Close_Disconnects_Subscribers(t *testing.T) {
	req := require.New(t)
	broadcaster := NewBroadcaster(slog.Default(), 4)
	sub, err := broadcaster.Open(context.Background(), func(domain.Message) {})
	req.NoError(err)

	broadcaster.Close()

	<-sub.Done()
	req.ErrorIs(sub.Err(), errors.ErrFeedDisconnected)
	_, err = broadcaster.Open(context.Background(), func(domain.Message) {})
	req.ErrorIs(err, errors.ErrFeedDisconnected)
}
