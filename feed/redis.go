package feed

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/repositories"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisBlock = time.Second

// RedisSubscriber tails the message stream from its tip.
type RedisSubscriber struct {
	client *redis.Client
	stream string
	block  time.Duration
	log    *slog.Logger
}

func NewRedisSubscriber(client *redis.Client, stream string, log *slog.Logger) *RedisSubscriber {
	return &RedisSubscriber{client: client, stream: stream, block: defaultRedisBlock, log: log}
}

func (r *RedisSubscriber) Open(ctx context.Context, onMessage func(domain.Message)) (contract.Subscription, error) {
	lastID, err := r.tip(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrFeedDisconnected, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sub := newSubscription(cancel)
	r.log.Debug("Tailing stream", "stream", r.stream, "from", lastID)

	go func() {
		var cause error
		defer func() { sub.finish(cause) }()

		for {
			streams, err := r.client.XRead(runCtx, &redis.XReadArgs{
				Streams: []string{r.stream, lastID},
				Count:   100,
				Block:   r.block,
			}).Result()
			if runCtx.Err() != nil {
				return
			}
			if err == redis.Nil {
				continue
			}
			if err != nil {
				r.log.Warn("Change feed dropped", "stream", r.stream, "error", err)
				cause = fmt.Errorf("%w: %w", errors.ErrFeedDisconnected, err)
				return
			}
			lastID = r.advance(sub, onMessage, lastID, streams)
		}
	}()
	return sub, nil
}

// advance delivers one XREAD reply and returns the id to read after.
// Malformed entries still move the cursor so they are not read again.
func (r *RedisSubscriber) advance(sub *subscription, onMessage func(domain.Message), lastID string, streams []redis.XStream) string {
	for _, stream := range streams {
		for _, entry := range stream.Messages {
			lastID = entry.ID
			record, err := repositories.ParseStreamRecord(entry.Values)
			if err != nil {
				r.log.Warn("Skipping malformed stream entry", "entry_id", entry.ID, "error", err)
				continue
			}
			sub.deliver(onMessage, record.ToMessage())
		}
	}
	return lastID
}

// tip returns the id of the newest entry, so only later inserts are delivered.
func (r *RedisSubscriber) tip(ctx context.Context) (string, error) {
	entries, err := r.client.XRevRangeN(ctx, r.stream, "+", "-", 1).Result()
	if err != nil {
		return "", err
	}
	return tipID(entries), nil
}

func tipID(entries []redis.XMessage) string {
	if len(entries) == 0 {
		return "0-0"
	}
	return entries[0].ID
}
