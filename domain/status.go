package domain

type State int

const (
	StateInitializing State = iota
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Status is a read-only snapshot of a session, rendered by the UI.
type Status struct {
	State      State
	Identity   Identity
	Len        int
	HistoryErr error // set when history could not be loaded
	FeedErr    error // set while the change feed is down
	SendErr    error // last failed send, cleared by the next accepted one
	Reconnects int
}

// Degraded reports whether the session runs without history or without feed.
func (s Status) Degraded() bool {
	return s.HistoryErr != nil || s.FeedErr != nil
}
