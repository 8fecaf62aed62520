// Package search keeps a local full-text index over the messages of the view.
package search

import (
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/blugelabs/bluge"
)

const (
	idField     = "_id"
	bodyField   = "body"
	authorField = "author"

	DefaultLimit = 10
)

// Index is an in-memory bluge index fed with view snapshots.
type Index struct {
	writer  *bluge.Writer
	log     *slog.Logger
	mu      sync.RWMutex
	indexed map[int64]domain.Message
}

func NewIndex(log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	return &Index{writer: writer, log: log, indexed: make(map[int64]domain.Message)}, nil
}

// IndexAll adds the messages not indexed yet. The view only grows so a
// snapshot can be passed as is.
func (i *Index) IndexAll(messages []domain.Message) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	batch := bluge.NewBatch()
	var added []domain.Message
	for _, message := range messages {
		if _, ok := i.indexed[message.ID]; ok {
			continue
		}
		doc := bluge.NewDocument(strconv.FormatInt(message.ID, 10)).
			AddField(bluge.NewTextField(bodyField, message.Body)).
			AddField(bluge.NewKeywordField(authorField, message.Author))
		batch.Update(doc.ID(), doc)
		added = append(added, message)
	}
	if len(added) == 0 {
		return nil
	}
	if err := i.writer.Batch(batch); err != nil {
		return fmt.Errorf("indexing %d messages: %w", len(added), err)
	}
	for _, message := range added {
		i.indexed[message.ID] = message
	}
	i.log.Debug("Messages indexed", "count", len(added), "total", len(i.indexed))
	return nil
}

// OnViewChange is meant to be registered as a session view observer.
func (i *Index) OnViewChange(messages []domain.Message) {
	if err := i.IndexAll(messages); err != nil {
		i.log.Warn("Search index out of date", "error", err)
	}
}

// Search returns the best matches for terms in message bodies, or the
// messages of an author given as "@name".
func (i *Index) Search(terms string, limit int) ([]domain.Message, error) {
	terms = strings.TrimSpace(terms)
	if terms == "" {
		return nil, errors.ErrEmptySearchTerms
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var query bluge.Query
	if author, ok := strings.CutPrefix(terms, "@"); ok {
		query = bluge.NewTermQuery(author).SetField(authorField)
	} else {
		query = bluge.NewMatchQuery(terms).SetField(bodyField)
	}

	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("opening index reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	it, err := reader.Search(context.Background(), bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", terms, err)
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	var results []domain.Message
	match, err := it.Next()
	for err == nil && match != nil {
		var id int64
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			if field == idField {
				id, _ = strconv.ParseInt(string(value), 10, 64)
				return false
			}
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		if message, ok := i.indexed[id]; ok {
			results = append(results, message)
		}
		match, err = it.Next()
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.indexed)
}

func (i *Index) Close() error {
	return i.writer.Close()
}
