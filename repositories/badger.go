package repositories

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/dgraph-io/badger/v4"
)

const messagePrefix = "msg:"

// Publisher receives every message committed by the embedded store.
type Publisher interface {
	Publish(message domain.Message)
}

// BadgerRepository is the embedded store backed by BadgerDB.
// Ids come from a snowflake node so they stay unique across restarts.
type BadgerRepository struct {
	db        *badger.DB
	node      *snowflake.Node
	publisher Publisher
	log       *slog.Logger
	now       func() time.Time
	mu        sync.Mutex
}

func NewBadgerRepository(db *badger.DB, node *snowflake.Node, publisher Publisher, log *slog.Logger) *BadgerRepository {
	return &BadgerRepository{
		db:        db,
		node:      node,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// messageKey is formatted as "msg:{timestamp_padded}:{id_padded}".
// The 19-digit zero padding keeps the lexicographical order chronological,
// the id breaks ties between messages committed in the same nanosecond.
func messageKey(record Record) []byte {
	return []byte(fmt.Sprintf("%s%019d:%019d", messagePrefix, record.CreatedAt.UnixNano(), record.ID))
}

// Insert commits the message then publishes it to the change feed.
// The lock keeps the publish order aligned with the commit order.
func (m *BadgerRepository) Insert(_ context.Context, author domain.Identity, body string) error {
	if domain.IsBlank(body) {
		return errors.ErrEmptyInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	record := Record{
		ID:        m.node.Generate().Int64(),
		Username:  author.String(),
		Message:   body,
		CreatedAt: m.now(),
	}
	bytes, err := EncodeRecord(record)
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrInsertRejected, err)
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(record), bytes)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrInsertRejected, err)
	}

	if m.publisher != nil {
		m.publisher.Publish(record.ToMessage())
	}
	return nil
}

// FetchHistory retrieves every message using a prefix scan.
// Thanks to the padded timestamp in the key, messages are naturally sorted by time.
func (m *BadgerRepository) FetchHistory(ctx context.Context) ([]domain.Message, error) {
	var records []Record
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			err := item.Value(func(value []byte) error {
				record, err := DecodeRecord(value)
				if err != nil {
					m.log.Warn("Skipping malformed record", "key", string(item.Key()), "error", err)
					return nil
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	return ToMessages(records), nil
}
