package feed

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"log/slog"
	"sync"
)

const defaultBroadcastBuffer = 64

// Broadcaster is the in-process change feed of the embedded store.
// A subscriber that lets its buffer fill up is disconnected, it recovers
// through a reconnect and a history resync.
type Broadcaster struct {
	log         *slog.Logger
	buffer      int
	mu          sync.Mutex
	nextID      int
	subscribers map[int]*listener
	closed      bool
}

type listener struct {
	events chan domain.Message
	drop   chan struct{}
	once   sync.Once
}

func (l *listener) disconnect() {
	l.once.Do(func() { close(l.drop) })
}

func NewBroadcaster(log *slog.Logger, buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = defaultBroadcastBuffer
	}
	return &Broadcaster{log: log, buffer: buffer, subscribers: make(map[int]*listener)}
}

// Publish never blocks the committing writer.
func (b *Broadcaster) Publish(message domain.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, l := range b.subscribers {
		select {
		case l.events <- message:
		default:
			b.log.Warn("Dropping slow subscriber", "subscriber", id, "message_id", message.ID)
			l.disconnect()
			delete(b.subscribers, id)
		}
	}
}

func (b *Broadcaster) Open(_ context.Context, onMessage func(domain.Message)) (contract.Subscription, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errors.ErrFeedDisconnected
	}
	id := b.nextID
	b.nextID++
	l := &listener{events: make(chan domain.Message, b.buffer), drop: make(chan struct{})}
	b.subscribers[id] = l
	b.mu.Unlock()

	stop := make(chan struct{})
	sub := newSubscription(func() { close(stop) })

	go func() {
		var cause error
		defer func() {
			b.remove(id)
			sub.finish(cause)
		}()
		for {
			select {
			case <-stop:
				return
			case message := <-l.events:
				sub.deliver(onMessage, message)
			case <-l.drop:
				cause = errors.ErrFeedDisconnected
				return
			}
		}
	}()
	return sub, nil
}

// Subscribers returns the number of open subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Close disconnects every subscriber and refuses new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, l := range b.subscribers {
		l.disconnect()
		delete(b.subscribers, id)
	}
}

func (b *Broadcaster) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
}
