package search

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newIndex(t *testing.T) *Index {
	index, err := NewIndex(slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func messages() []domain.Message {
	at := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	return []domain.Message{
		{ID: 1, Author: "Alice", Body: "the deploy is scheduled for friday", CreatedAt: at},
		{ID: 2, Author: "Bob", Body: "lunch at noon?", CreatedAt: at.Add(time.Minute)},
		{ID: 3, Author: "Alice", Body: "deploy went fine", CreatedAt: at.Add(2 * time.Minute)},
	}
}

func ids(result []domain.Message) []int64 {
	out := make([]int64, 0, len(result))
	for _, m := range result {
		out = append(out, m.ID)
	}
	return out
}

func TestIndex_Search_Body(t *testing.T) {
	req := require.New(t)
	index := newIndex(t)

	// Given an indexed view
	req.NoError(index.IndexAll(messages()))

	// When searching a word
	result, err := index.Search("deploy", 10)

	// Then only matching messages are returned
	req.NoError(err)
	req.ElementsMatch([]int64{1, 3}, ids(result))
}

func TestIndex_Search_Author(t *testing.T) {
	req := require.New(t)
	index := newIndex(t)
	req.NoError(index.IndexAll(messages()))

	result, err := index.Search("@Bob", 10)

	req.NoError(err)
	req.Equal([]int64{2}, ids(result))
}

func TestIndex_Snapshots_Are_Indexed_Once(t *testing.T) {
	req := require.New(t)
	index := newIndex(t)
	all := messages()

	index.OnViewChange(all[:2])
	index.OnViewChange(all)
	index.OnViewChange(all)

	req.Equal(3, index.Len())
	result, err := index.Search("fine", 10)
	req.NoError(err)
	req.Equal([]int64{3}, ids(result))
}

func TestIndex_Search_Empty_Terms(t *testing.T) {
	index := newIndex(t)

	_, err := index.Search("   ", 10)

	require.ErrorIs(t, err, errors.ErrEmptySearchTerms)
}

func TestIndex_Search_No_Match(t *testing.T) {
	req := require.New(t)
	index := newIndex(t)
	req.NoError(index.IndexAll(messages()))

	result, err := index.Search("holiday", 0)

	req.NoError(err)
	req.Empty(result)
}
