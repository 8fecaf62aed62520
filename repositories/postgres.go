package repositories

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var postgresSchema string

const (
	selectHistory = `SELECT id, username, message, created_at FROM messages ORDER BY created_at ASC, id ASC`
	insertMessage = `INSERT INTO messages (username, message) VALUES ($1, $2)`
)

type PostgresConfig struct {
	DSN string

	MaxConns int32

	MinConns int32
}

// NewPostgresPool opens and pings a connection pool.
// The feed subscriber holds one connection per open subscription, size MaxConns accordingly.
func NewPostgresPool(ctx context.Context, cfg PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 4
	}

	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// PostgresRepository reads and writes the messages table.
type PostgresRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewPostgresRepository(pool *pgxpool.Pool, log *slog.Logger) *PostgresRepository {
	return &PostgresRepository{pool: pool, log: log}
}

func (r *PostgresRepository) FetchHistory(ctx context.Context) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, selectHistory)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[Record])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	r.log.Debug("History fetched", "count", len(records))
	return ToMessages(records), nil
}

func (r *PostgresRepository) Insert(ctx context.Context, author domain.Identity, body string) error {
	if domain.IsBlank(body) {
		return errors.ErrEmptyInput
	}
	if _, err := r.pool.Exec(ctx, insertMessage, author.String(), body); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrInsertRejected, err)
	}
	return nil
}

// EnsureSchema creates the messages table and the trigger that notifies every insert on channel.
func (r *PostgresRepository) EnsureSchema(ctx context.Context, channel string) error {
	if _, err := r.pool.Exec(ctx, SchemaSQL(channel)); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	r.log.Info("Schema ready", "channel", channel)
	return nil
}

// SchemaSQL renders the schema with channel quoted as a SQL string literal.
func SchemaSQL(channel string) string {
	literal := strings.ReplaceAll(channel, "'", "''")
	return strings.ReplaceAll(postgresSchema, "{{channel}}", literal)
}
