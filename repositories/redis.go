package repositories

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// insertScript assigns the id and the commit time on the server, then appends to the stream.
// KEYS[1] stream, KEYS[2] id counter, ARGV[1] username, ARGV[2] message.
var insertScript = redis.NewScript(`
local id = redis.call('INCR', KEYS[2])
local now = redis.call('TIME')
local created = now[1] .. string.format('%06d', tonumber(now[2]))
redis.call('XADD', KEYS[1], '*', 'id', id, 'username', ARGV[1], 'message', ARGV[2], 'created_at', created)
return id
`)

// RedisRepository stores messages in a Redis stream.
// The stream itself is the change feed, see feed.RedisSubscriber.
type RedisRepository struct {
	client *redis.Client
	stream string
	log    *slog.Logger
}

func NewRedisRepository(client *redis.Client, stream string, log *slog.Logger) *RedisRepository {
	return &RedisRepository{client: client, stream: stream, log: log}
}

func SequenceKey(stream string) string {
	return stream + ":seq"
}

func (r *RedisRepository) FetchHistory(ctx context.Context) ([]domain.Message, error) {
	entries, err := r.client.XRange(ctx, r.stream, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("%w: xrange %s: %w", errors.ErrStoreUnavailable, r.stream, err)
	}

	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		record, err := ParseStreamRecord(entry.Values)
		if err != nil {
			r.log.Warn("Skipping malformed stream entry", "entry_id", entry.ID, "error", err)
			continue
		}
		records = append(records, record)
	}
	r.log.Debug("History fetched", "count", len(records), "stream", r.stream)
	return ToMessages(records), nil
}

func (r *RedisRepository) Insert(ctx context.Context, author domain.Identity, body string) error {
	if domain.IsBlank(body) {
		return errors.ErrEmptyInput
	}
	keys := []string{r.stream, SequenceKey(r.stream)}
	if err := insertScript.Run(ctx, r.client, keys, author.String(), body).Err(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrInsertRejected, err)
	}
	return nil
}

// ParseStreamRecord reads the fields written by insertScript.
// created_at is a unix timestamp in microseconds.
func ParseStreamRecord(values map[string]any) (Record, error) {
	id, err := parseInt64(values, "id")
	if err != nil {
		return Record{}, err
	}
	micros, err := parseInt64(values, "created_at")
	if err != nil {
		return Record{}, err
	}
	username, err := parseString(values, "username")
	if err != nil {
		return Record{}, err
	}
	message, err := parseString(values, "message")
	if err != nil {
		return Record{}, err
	}

	record := Record{
		ID:        id,
		Username:  username,
		Message:   message,
		CreatedAt: time.UnixMicro(micros).UTC(),
	}
	return record, record.Validate()
}

func parseInt64(values map[string]any, key string) (int64, error) {
	raw, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", errors.ErrInvalidRecord, key)
	}
	num, err := strconv.ParseInt(fmt.Sprint(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parsing %s: %w", errors.ErrInvalidRecord, key, err)
	}
	return num, nil
}

func parseString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %s", errors.ErrInvalidRecord, key)
	}
	return fmt.Sprint(raw), nil
}
