package feed

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubscription_Finish_Records_Error(t *testing.T) {
	req := require.New(t)
	sub := newSubscription(func() {})

	sub.finish(errors.ErrFeedDisconnected)
	sub.finish(nil)

	<-sub.Done()
	req.ErrorIs(sub.Err(), errors.ErrFeedDisconnected)
}

func TestSubscription_Close_Hides_Transport_Error(t *testing.T) {
	req := require.New(t)
	var sub *subscription
	stops := 0
	sub = newSubscription(func() {
		stops++
		go sub.finish(errors.ErrFeedDisconnected)
	})

	req.NoError(sub.Close())
	req.NoError(sub.Close())

	req.Equal(1, stops)
	req.NoError(sub.Err())
}

func TestSubscription_No_Delivery_After_Close(t *testing.T) {
	req := require.New(t)
	var sub *subscription
	sub = newSubscription(func() { sub.finish(nil) })
	delivered := 0

	sub.deliver(func(domain.Message) { delivered++ }, domain.Message{ID: 1})
	req.NoError(sub.Close())
	sub.deliver(func(domain.Message) { delivered++ }, domain.Message{ID: 2})

	req.Equal(1, delivered)
}
