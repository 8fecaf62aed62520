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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSubscriber listens on the channel fed by the messages insert trigger.
type PostgresSubscriber struct {
	pool    *pgxpool.Pool
	channel string
	log     *slog.Logger
}

func NewPostgresSubscriber(pool *pgxpool.Pool, channel string, log *slog.Logger) *PostgresSubscriber {
	return &PostgresSubscriber{pool: pool, channel: channel, log: log}
}

// Open holds a dedicated connection for the lifetime of the subscription.
func (p *PostgresSubscriber) Open(ctx context.Context, onMessage func(domain.Message)) (contract.Subscription, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire: %w", errors.ErrFeedDisconnected, err)
	}
	channel := pgx.Identifier{p.channel}.Sanitize()
	if _, err = conn.Exec(ctx, "LISTEN "+channel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("%w: listen %s: %w", errors.ErrFeedDisconnected, p.channel, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sub := newSubscription(cancel)
	p.log.Debug("Listening for inserts", "channel", p.channel)

	go func() {
		var cause error
		defer func() {
			if !conn.Conn().IsClosed() {
				unlistenCtx, stop := context.WithTimeout(context.Background(), time.Second)
				if _, err := conn.Exec(unlistenCtx, "UNLISTEN *"); err != nil {
					p.log.Debug("Unlisten failed", "error", err)
				}
				stop()
			}
			conn.Release()
			sub.finish(cause)
		}()

		for {
			notification, err := conn.Conn().WaitForNotification(runCtx)
			if err != nil {
				if runCtx.Err() != nil {
					return
				}
				p.log.Warn("Change feed dropped", "channel", p.channel, "error", err)
				cause = fmt.Errorf("%w: %w", errors.ErrFeedDisconnected, err)
				return
			}
			p.handle(sub, onMessage, notification.Payload)
		}
	}()
	return sub, nil
}

// handle delivers the record carried by one notification payload.
func (p *PostgresSubscriber) handle(sub *subscription, onMessage func(domain.Message), payload string) {
	record, err := repositories.DecodeRecord([]byte(payload))
	if err != nil {
		p.log.Warn("Skipping malformed notification", "channel", p.channel, "error", err)
		return
	}
	sub.deliver(onMessage, record.ToMessage())
}
