package repositories

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	historyBatchSize = 256
	historyMaxWait   = 2 * time.Second
)

// natsPayload is the body of a published message. The id and the
// commit time come from the stream metadata.
type natsPayload struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// NatsRepository stores messages in a JetStream stream.
type NatsRepository struct {
	js      jetstream.JetStream
	stream  jetstream.Stream
	subject string
	log     *slog.Logger
}

// NewNatsRepository makes sure the stream exists before returning.
func NewNatsRepository(ctx context.Context, js jetstream.JetStream, streamName, subject string, log *slog.Logger) (*NatsRepository, error) {
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        streamName,
		Description: "Stores chat messages",
		Subjects:    []string{subject},
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: stream %s: %w", errors.ErrStoreUnavailable, streamName, err)
	}
	log.Debug("Stream ready", "stream", streamName, "subject", subject)
	return &NatsRepository{js: js, stream: stream, subject: subject, log: log}, nil
}

func (r *NatsRepository) Stream() jetstream.Stream {
	return r.stream
}

func (r *NatsRepository) Subject() string {
	return r.subject
}

// FetchHistory replays the stream from the first sequence up to the last
// sequence observed when the call started.
func (r *NatsRepository) FetchHistory(ctx context.Context) ([]domain.Message, error) {
	info, err := r.stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: stream info: %w", errors.ErrStoreUnavailable, err)
	}
	lastSeq := info.State.LastSeq
	if info.State.Msgs == 0 || lastSeq == 0 {
		return []domain.Message{}, nil
	}

	consumer, err := r.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{r.subject},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: history consumer: %w", errors.ErrStoreUnavailable, err)
	}

	var records []Record
	var seen uint64
	for seen < lastSeq {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
		}
		batch, err := consumer.Fetch(historyBatchSize, jetstream.FetchMaxWait(historyMaxWait))
		if err != nil {
			return nil, fmt.Errorf("%w: fetch: %w", errors.ErrStoreUnavailable, err)
		}
		received := 0
		for msg := range batch.Messages() {
			received++
			record, err := RecordFromMsg(msg)
			if err != nil {
				r.log.Warn("Skipping malformed stream message", "subject", msg.Subject(), "error", err)
				continue
			}
			seen = uint64(record.ID)
			records = append(records, record)
		}
		if err := batch.Error(); err != nil {
			return nil, fmt.Errorf("%w: fetch: %w", errors.ErrStoreUnavailable, err)
		}
		if received == 0 {
			break
		}
	}
	r.log.Debug("History fetched", "count", len(records), "last_seq", lastSeq)
	return ToMessages(records), nil
}

func (r *NatsRepository) Insert(ctx context.Context, author domain.Identity, body string) error {
	if domain.IsBlank(body) {
		return errors.ErrEmptyInput
	}
	data, err := json.Marshal(natsPayload{Username: author.String(), Message: body})
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrInsertRejected, err)
	}
	if _, err = r.js.Publish(ctx, r.subject, data); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrInsertRejected, err)
	}
	return nil
}

// RecordFromMsg builds a record out of a stream message and its metadata.
func RecordFromMsg(msg jetstream.Msg) (Record, error) {
	meta, err := msg.Metadata()
	if err != nil {
		return Record{}, fmt.Errorf("%w: metadata: %w", errors.ErrInvalidRecord, err)
	}
	var payload natsPayload
	if err = json.Unmarshal(msg.Data(), &payload); err != nil {
		return Record{}, fmt.Errorf("%w: %w", errors.ErrInvalidRecord, err)
	}
	record := Record{
		ID:        int64(meta.Sequence.Stream),
		Username:  payload.Username,
		Message:   payload.Message,
		CreatedAt: meta.Timestamp.UTC(),
	}
	return record, record.Validate()
}
