// Package domain contains core concepts of the chat client.
// This file defines Message and the ordering rule of a view.
// Messages are immutable and identified by the store that committed them.
package domain

import (
	"strings"
	"time"
)

// Message represents an immutable chat message confirmed by the store.
type Message struct {
	ID        int64 // assigned by the store, unique and orderable
	Author    string
	Body      string
	CreatedAt time.Time
}

// Before reports whether m sorts before other.
// CreatedAt is the sort key, ID breaks ties so the order stays deterministic.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// IsFrom reports whether the message was written under the given identity.
func (m Message) IsFrom(identity Identity) bool {
	return m.Author == string(identity)
}

// IsBlank reports whether a body would be rejected before reaching the store.
func IsBlank(body string) bool {
	return strings.TrimSpace(body) == ""
}
