// Package feed implements change feed subscriptions for every store backend.
// A subscription delivers committed messages to a callback until it is closed
// or its transport drops.
package feed

import (
	"chat-sync/domain"
	"sync"
)

// subscription is the lifecycle shared by all backends.
// onMessage is never invoked after Close returns.
type subscription struct {
	stop      func()
	done      chan struct{}
	stopOnce  sync.Once
	finishOne sync.Once
	mu        sync.Mutex
	closed    bool
	err       error
	deliverMu sync.Mutex
}

func newSubscription(stop func()) *subscription {
	return &subscription{stop: stop, done: make(chan struct{})}
}

// Close stops delivery and waits for the backend goroutine to exit.
// It must not be called from inside the onMessage callback.
func (s *subscription) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.stopOnce.Do(s.stop)
	<-s.done
	// Wait for a delivery that was already in flight.
	s.deliverMu.Lock()
	s.deliverMu.Unlock()
	return nil
}

func (s *subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the reason the feed ended. It is nil while the feed is open
// and after a Close.
func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// finish marks the feed as ended. err is dropped when the caller closed it.
func (s *subscription) finish(err error) {
	s.finishOne.Do(func() {
		s.mu.Lock()
		if !s.closed {
			s.err = err
		}
		s.mu.Unlock()
		close(s.done)
	})
}

// deliver forwards a message unless the subscription is closing.
func (s *subscription) deliver(onMessage func(message domain.Message), message domain.Message) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if s.isClosed() {
		return
	}
	select {
	case <-s.done:
		return
	default:
	}
	onMessage(message)
}
