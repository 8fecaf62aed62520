//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-sync/domain"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Gateway abstracts the persistent message store.
// It keeps no state between calls.
type Gateway interface {
	// FetchHistory returns every stored message, ascending by CreatedAt then ID.
	FetchHistory(ctx context.Context) ([]domain.Message, error)
	// Insert asks the store to commit a new message. The store assigns ID and CreatedAt,
	// the confirmed record only comes back through the change feed.
	Insert(ctx context.Context, author domain.Identity, body string) error
}

// FeedSubscriber opens live subscriptions to insertion events.
type FeedSubscriber interface {
	// Open delivers every message committed after it returns to onMessage,
	// exactly once and in commit order, from a single goroutine.
	Open(ctx context.Context, onMessage func(domain.Message)) (Subscription, error)
}

// Subscription is a live feed connection.
// It never reconnects by itself.
type Subscription interface {
	// Close stops delivery, it is a no-op on an already closed subscription.
	Close() error
	// Done is closed once delivery has stopped.
	Done() <-chan struct{}
	// Err is nil after Close and wraps errors.ErrFeedDisconnected if the connection dropped.
	Err() error
}

// IdentityProvider recovers or asks for the display name of this client.
type IdentityProvider interface {
	GetOrPromptUsername() (domain.Identity, error)
}

// ISession is what the terminal workers see of a running chat session.
type ISession interface {
	Send(ctx context.Context, body string) error
	View() []domain.Message
	Status() domain.Status
	Stop()
}

type Searcher interface {
	Search(terms string, limit int) ([]domain.Message, error)
}
