package repositories

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
)

// Record is the persisted shape of a message at the store boundary.
// Feed events carry the same shape.
type Record struct {
	ID        int64     `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (r Record) Validate() error {
	if r.ID <= 0 {
		return fmt.Errorf("%w: id %d", errors.ErrInvalidRecord, r.ID)
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing created_at for id %d", errors.ErrInvalidRecord, r.ID)
	}
	return nil
}

func (r Record) ToMessage() domain.Message {
	return domain.Message{
		ID:        r.ID,
		Author:    r.Username,
		Body:      r.Message,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

// DecodeRecord parses a JSON record as produced by row_to_json or the embedded store.
func DecodeRecord(payload []byte) (Record, error) {
	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return Record{}, fmt.Errorf("%w: %w", errors.ErrInvalidRecord, err)
	}
	if err := record.Validate(); err != nil {
		return Record{}, err
	}
	return record, nil
}

func EncodeRecord(record Record) ([]byte, error) {
	return json.Marshal(record)
}

// ToMessages maps records and sorts them in view order.
func ToMessages(records []Record) []domain.Message {
	messages := lo.Map(records, func(item Record, _ int) domain.Message {
		return item.ToMessage()
	})
	slices.SortStableFunc(messages, func(a, b domain.Message) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		}
		return 0
	})
	return messages
}
