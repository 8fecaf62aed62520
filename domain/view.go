package domain

import (
	"slices"
	"sort"
)

// View is the ordered sequence of messages rendered for one session.
// Messages are kept sorted by CreatedAt then ID and are unique by ID.
// A View is not safe for concurrent use, the session loop owns it.
type View struct {
	messages []Message
	ids      map[int64]struct{}
}

func NewView() *View {
	return &View{ids: make(map[int64]struct{})}
}

// Insert places the message at its sorted position.
// It returns false, leaving the view untouched, if a message with the same ID is already present.
func (v *View) Insert(message Message) bool {
	if _, ok := v.ids[message.ID]; ok {
		return false
	}
	v.ids[message.ID] = struct{}{}

	// Fast path, the feed delivers in commit order so most inserts land at the end
	n := len(v.messages)
	if n == 0 || v.messages[n-1].Before(message) {
		v.messages = append(v.messages, message)
		return true
	}

	idx := sort.Search(n, func(i int) bool {
		return message.Before(v.messages[i])
	})
	v.messages = slices.Insert(v.messages, idx, message)
	return true
}

// Merge inserts every message and returns the ones that were not already present.
func (v *View) Merge(messages []Message) []Message {
	var accepted []Message
	for _, m := range messages {
		if v.Insert(m) {
			accepted = append(accepted, m)
		}
	}
	return accepted
}

func (v *View) Contains(id int64) bool {
	_, ok := v.ids[id]
	return ok
}

func (v *View) Len() int {
	return len(v.messages)
}

// Snapshot returns a copy that callers may keep and read from any goroutine.
func (v *View) Snapshot() []Message {
	return slices.Clone(v.messages)
}
