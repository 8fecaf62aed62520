package repositories

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu       sync.Mutex
	messages []domain.Message
}

func (p *recordingPublisher) Publish(message domain.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
}

func newTestRepository(t *testing.T, publisher Publisher) *BadgerRepository {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })
	node, err := snowflake.NewNode(1)
	req.NoError(err)
	return NewBadgerRepository(db, node, publisher, slog.Default())
}

func Test_Record_Multiple_Message(t *testing.T) {
	req := require.New(t)
	publisher := &recordingPublisher{}
	repository := newTestRepository(t, publisher)
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	repository.now = func() time.Time {
		step++
		return at.Add(time.Duration(step) * time.Minute)
	}

	// Given three messages inserted by different authors
	for _, author := range []string{"Alice", "Bob", "Clara"} {
		req.NoError(repository.Insert(context.Background(), domain.Identity(author), "hello from "+author))
	}

	// When the history is fetched
	history, err := repository.FetchHistory(context.Background())

	// Then the messages come back in commit order and were published in the same order
	req.NoError(err)
	req.Len(history, 3)
	req.Equal("Alice", history[0].Author)
	req.Equal("Bob", history[1].Author)
	req.Equal("Clara", history[2].Author)
	req.Equal("hello from Bob", history[1].Body)
	req.Equal(history, publisher.messages)
}

func Test_Record_Same_Timestamp_Is_Ordered_By_ID(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t, nil)
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	repository.now = func() time.Time { return at }

	// Given two messages committed at the same instant
	req.NoError(repository.Insert(context.Background(), "Alice", "first"))
	req.NoError(repository.Insert(context.Background(), "Alice", "second"))

	// When the history is fetched
	history, err := repository.FetchHistory(context.Background())

	// Then the id breaks the tie
	req.NoError(err)
	req.Len(history, 2)
	req.Less(history[0].ID, history[1].ID)
	req.Equal("first", history[0].Body)
}

func Test_Record_Blank_Body_Is_Rejected(t *testing.T) {
	req := require.New(t)
	publisher := &recordingPublisher{}
	repository := newTestRepository(t, publisher)

	// When a whitespace body is inserted
	err := repository.Insert(context.Background(), "Alice", "   \t")

	// Then nothing is stored nor published
	req.ErrorIs(err, errors.ErrEmptyInput)
	history, err := repository.FetchHistory(context.Background())
	req.NoError(err)
	req.Empty(history)
	req.Empty(publisher.messages)
}

func Test_Record_Body_Is_Kept_Untrimmed(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t, nil)

	req.NoError(repository.Insert(context.Background(), "Alice", "  padded  "))

	history, err := repository.FetchHistory(context.Background())
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("  padded  ", history[0].Body)
}

func Test_FetchHistory_On_Closed_Database(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	node, err := snowflake.NewNode(1)
	req.NoError(err)
	repository := NewBadgerRepository(db, node, nil, slog.Default())
	req.NoError(db.Close())

	_, err = repository.FetchHistory(context.Background())

	req.ErrorIs(err, errors.ErrStoreUnavailable)
}
