package feed

import (
	"chat-sync/contract"
	"chat-sync/domain"
	chaterrors "chat-sync/errors"
	"chat-sync/repositories"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NatsSubscriber delivers new stream messages through an ordered consumer.
type NatsSubscriber struct {
	js      jetstream.JetStream
	stream  string
	subject string
	log     *slog.Logger
}

func NewNatsSubscriber(js jetstream.JetStream, stream, subject string, log *slog.Logger) *NatsSubscriber {
	return &NatsSubscriber{js: js, stream: stream, subject: subject, log: log}
}

func (n *NatsSubscriber) Open(ctx context.Context, onMessage func(domain.Message)) (contract.Subscription, error) {
	consumer, err := n.js.OrderedConsumer(ctx, n.stream, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{n.subject},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: consumer: %w", chaterrors.ErrFeedDisconnected, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sub := newSubscription(cancel)

	var dropOnce sync.Once
	var cause error
	dropped := make(chan struct{})
	drop := func(err error) {
		dropOnce.Do(func() {
			cause = fmt.Errorf("%w: %w", chaterrors.ErrFeedDisconnected, err)
			close(dropped)
		})
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		record, err := repositories.RecordFromMsg(msg)
		if err != nil {
			n.log.Warn("Skipping malformed stream message", "subject", msg.Subject(), "error", err)
			return
		}
		sub.deliver(onMessage, record.ToMessage())
	}, jetstream.ConsumeErrHandler(func(_ jetstream.ConsumeContext, err error) {
		if isTerminal(err) {
			n.log.Warn("Change feed dropped", "stream", n.stream, "error", err)
			drop(err)
			return
		}
		n.log.Debug("Consumer error", "stream", n.stream, "error", err)
	}))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: consume: %w", chaterrors.ErrFeedDisconnected, err)
	}
	n.log.Debug("Consuming stream", "stream", n.stream, "subject", n.subject)

	go func() {
		select {
		case <-runCtx.Done():
			consumeCtx.Stop()
			sub.finish(nil)
		case <-dropped:
			consumeCtx.Stop()
			sub.finish(cause)
		}
	}()
	return sub, nil
}

func isTerminal(err error) bool {
	return errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, jetstream.ErrConsumerDeleted) ||
		errors.Is(err, jetstream.ErrStreamNotFound)
}
