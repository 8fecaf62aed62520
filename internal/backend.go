package internal

import (
	"chat-sync/contract"
	"chat-sync/errors"
	"chat-sync/feed"
	"chat-sync/repositories"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/bwmarrin/snowflake"
	"github.com/dgraph-io/badger/v4"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
)

// Backend bundles the gateway and the feed of one store.
type Backend struct {
	Name    string
	Gateway contract.Gateway
	Feed    contract.FeedSubscriber
	// DB is only set for the embedded store.
	DB      *badger.DB
	closers []func()
}

// Close releases the store connections in reverse opening order.
func (b *Backend) Close() {
	for _, closer := range slices.Backward(b.closers) {
		closer()
	}
	b.closers = nil
}

func (b *Backend) onClose(fn func()) {
	b.closers = append(b.closers, fn)
}

func OpenBackend(ctx context.Context, config Config, log *slog.Logger) (*Backend, error) {
	log = log.With("backend", config.StoreBackend)
	backend := &Backend{Name: config.StoreBackend}
	var err error
	switch config.StoreBackend {
	case BackendPostgres:
		err = openPostgres(ctx, config, log, backend)
	case BackendRedis:
		err = openRedis(ctx, config, log, backend)
	case BackendNats:
		err = openNats(ctx, config, log, backend)
	case BackendEmbedded:
		err = openEmbedded(config, log, backend)
	default:
		err = fmt.Errorf("%w: %q", errors.ErrUnknownBackend, config.StoreBackend)
	}
	if err != nil {
		backend.Close()
		return nil, err
	}
	log.Info("Store backend ready")
	return backend, nil
}

func openPostgres(ctx context.Context, config Config, log *slog.Logger, backend *Backend) error {
	pool, err := repositories.NewPostgresPool(ctx, repositories.PostgresConfig{
		DSN:      config.DatabaseURL,
		MaxConns: int32(config.DBMaxConns),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	backend.onClose(pool.Close)

	repository := repositories.NewPostgresRepository(pool, log)
	if config.PgEnsureSchema {
		if err = repository.EnsureSchema(ctx, config.PgNotifyChannel); err != nil {
			return err
		}
	}
	backend.Gateway = repository
	backend.Feed = feed.NewPostgresSubscriber(pool, config.PgNotifyChannel, log)
	return nil
}

func openRedis(ctx context.Context, config Config, log *slog.Logger, backend *Backend) error {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	backend.onClose(func() { _ = client.Close() })
	if err = client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis ping: %w", errors.ErrStoreUnavailable, err)
	}
	backend.Gateway = repositories.NewRedisRepository(client, config.RedisStream, log)
	backend.Feed = feed.NewRedisSubscriber(client, config.RedisStream, log)
	return nil
}

func openNats(ctx context.Context, config Config, log *slog.Logger, backend *Backend) error {
	nc, err := nats.Connect(config.NatsURL, nats.Name("chat-sync"))
	if err != nil {
		return fmt.Errorf("%w: failed to connect to NATS: %w", errors.ErrStoreUnavailable, err)
	}
	backend.onClose(nc.Close)

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create jetstream context: %w", err)
	}
	repository, err := repositories.NewNatsRepository(ctx, js, config.NatsStream, config.NatsSubject, log)
	if err != nil {
		return err
	}
	backend.Gateway = repository
	backend.Feed = feed.NewNatsSubscriber(js, config.NatsStream, config.NatsSubject, log)
	return nil
}

func openEmbedded(config Config, log *slog.Logger, backend *Backend) error {
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	backend.onClose(func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	})
	node, err := snowflake.NewNode(config.SnowflakeNode)
	if err != nil {
		return fmt.Errorf("snowflake node %d: %w", config.SnowflakeNode, err)
	}

	broadcaster := feed.NewBroadcaster(log, config.QueueSize)
	backend.onClose(broadcaster.Close)
	backend.DB = db
	backend.Gateway = repositories.NewBadgerRepository(db, node, broadcaster, log)
	backend.Feed = broadcaster
	return nil
}
