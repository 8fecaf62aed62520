// Package session runs the synchronization of one chat session.
// The controller owns the ordered view: history rows and feed events are
// merged into it on a single goroutine, deduplicated by message id.
package session

import (
	"chat-sync/contract"
	"chat-sync/domain"
	chaterrors "chat-sync/errors"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultQueueSize = 256

type Config struct {
	Identity       domain.Identity
	QueueSize      int
	HistoryTimeout time.Duration
	SendTimeout    time.Duration
	Reconnect      ReconnectPolicy
}

type feedMessage struct {
	message domain.Message
}

type historyLoaded struct {
	messages []domain.Message
	err      error
	resync   bool
}

type feedOpened struct {
	generation int
	sub        contract.Subscription
	err        error
}

type reopenDue struct {
	generation int
}

// Controller is the synchronization controller of a session.
// Observers are invoked from the loop goroutine and must not call Stop.
type Controller struct {
	id      uuid.UUID
	log     *slog.Logger
	gateway contract.Gateway
	feed    contract.FeedSubscriber
	cfg     Config

	events   chan any
	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}
	stopOnce sync.Once
	// store calls and timers started on behalf of the loop
	helpers sync.WaitGroup

	mu       sync.RWMutex
	started  bool
	closed   bool
	snapshot []domain.Message
	status   domain.Status
	onView   []func([]domain.Message)
	onNew    []func(domain.Message)
	onStatus []func(domain.Status)

	// owned by the loop goroutine
	view       *domain.View
	sub        contract.Subscription
	generation int
	reconnect  *reconnector
}

func NewController(log *slog.Logger, gateway contract.Gateway, feed contract.FeedSubscriber, cfg Config) *Controller {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	id := uuid.New()
	return &Controller{
		id:        id,
		log:       log.With("session_id", id.String()),
		gateway:   gateway,
		feed:      feed,
		cfg:       cfg,
		events:    make(chan any, cfg.QueueSize),
		loopDone:  make(chan struct{}),
		snapshot:  []domain.Message{},
		status:    domain.Status{State: domain.StateInitializing, Identity: cfg.Identity},
		view:      domain.NewView(),
		reconnect: newReconnector(cfg.Reconnect),
	}
}

func (c *Controller) ID() uuid.UUID {
	return c.id
}

// OnViewChange registers an observer receiving a fresh snapshot after every view mutation.
func (c *Controller) OnViewChange(fn func([]domain.Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onView = append(c.onView, fn)
}

// OnNewMessage registers an observer fired once per message accepted from the feed.
func (c *Controller) OnNewMessage(fn func(domain.Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNew = append(c.onNew, fn)
}

func (c *Controller) OnStatus(fn func(domain.Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStatus = append(c.onStatus, fn)
}

// Start loads the history and opens the feed concurrently.
// A second call returns nil without subscribing again.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return chaterrors.ErrSessionClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.log.Info("Starting session", "identity", c.cfg.Identity.String())
	c.spawn(func() { c.fetchHistory(false) })
	c.spawn(func() { c.openFeed(0) })
	go c.loop()
	return nil
}

// Stop closes the feed, cancels pending work and waits for the loop and
// every pending store call to return.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.status.State = domain.StateClosed
		started := c.started
		c.mu.Unlock()
		if !started {
			return
		}
		c.cancel()
		<-c.loopDone
		c.helpers.Wait()
		c.drain()
		c.log.Info("Session stopped")
	})
}

// Send asks the store to commit body. The view only changes when the
// message comes back through the feed.
func (c *Controller) Send(ctx context.Context, body string) error {
	if c.isClosed() {
		return chaterrors.ErrSessionClosed
	}
	if domain.IsBlank(body) {
		return nil
	}
	if c.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.SendTimeout)
		defer cancel()
	}

	err := c.gateway.Insert(ctx, c.cfg.Identity, body)
	switch {
	case err == nil:
		c.setSendErr(nil)
		return nil
	case errors.Is(err, chaterrors.ErrEmptyInput):
		return nil
	}
	if !errors.Is(err, chaterrors.ErrInsertRejected) {
		err = fmt.Errorf("%w: %w", chaterrors.ErrInsertRejected, err)
	}
	c.log.Warn("Message rejected by store", "error", err)
	c.setSendErr(err)
	return err
}

func (c *Controller) View() []domain.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.snapshot)
}

func (c *Controller) Status() domain.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Controller) loop() {
	defer close(c.loopDone)
	defer c.shutdown()

	for {
		var subDone <-chan struct{}
		if c.sub != nil {
			subDone = c.sub.Done()
		}
		select {
		case <-c.ctx.Done():
			return
		case <-subDone:
			err := c.sub.Err()
			c.sub = nil
			c.onFeedDropped(err)
		case ev := <-c.events:
			if c.ctx.Err() != nil || c.isClosed() {
				discard(ev)
				return
			}
			c.handle(ev)
		}
	}
}

func (c *Controller) handle(ev any) {
	switch e := ev.(type) {
	case feedMessage:
		c.onFeedMessage(e.message)
	case historyLoaded:
		c.onHistoryLoaded(e)
	case feedOpened:
		c.onFeedOpened(e)
	case reopenDue:
		if e.generation == c.generation {
			c.spawn(func() { c.openFeed(e.generation) })
		}
	}
}

func (c *Controller) shutdown() {
	if c.sub != nil {
		if err := c.sub.Close(); err != nil {
			c.log.Debug("Closing subscription", "error", err)
		}
		c.sub = nil
	}
	c.notifyStatus()
}

// spawn runs fn on a goroutine Stop waits for.
// Only Start and the loop call it, so no Add races with Wait.
func (c *Controller) spawn(fn func()) {
	c.helpers.Add(1)
	go func() {
		defer c.helpers.Done()
		fn()
	}()
}

// drain discards the events queued after the loop exited.
func (c *Controller) drain() {
	for {
		select {
		case ev := <-c.events:
			discard(ev)
		default:
			return
		}
	}
}

// discard closes the subscription an unhandled event carries.
func discard(ev any) {
	if e, ok := ev.(feedOpened); ok && e.sub != nil {
		_ = e.sub.Close()
	}
}

// enqueue blocks while the queue is full and gives up once the session closes.
func (c *Controller) enqueue(ev any) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Controller) fetchHistory(resync bool) {
	ctx := c.ctx
	if c.cfg.HistoryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.HistoryTimeout)
		defer cancel()
	}
	messages, err := c.gateway.FetchHistory(ctx)
	c.enqueue(historyLoaded{messages: messages, err: err, resync: resync})
}

func (c *Controller) openFeed(generation int) {
	sub, err := c.feed.Open(c.ctx, func(message domain.Message) {
		c.enqueue(feedMessage{message: message})
	})
	if !c.enqueue(feedOpened{generation: generation, sub: sub, err: err}) && sub != nil {
		_ = sub.Close()
	}
}

func (c *Controller) onFeedMessage(message domain.Message) {
	if !c.view.Insert(message) {
		c.log.Debug("Duplicate message ignored", "id", message.ID)
		return
	}
	c.publishView()
	c.notifyNew(message)
}

func (c *Controller) onHistoryLoaded(e historyLoaded) {
	var accepted []domain.Message
	c.mu.Lock()
	if e.err != nil {
		err := e.err
		if !errors.Is(err, chaterrors.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %w", chaterrors.ErrStoreUnavailable, err)
		}
		c.status.HistoryErr = err
		c.log.Warn("History unavailable", "resync", e.resync, "error", err)
	} else {
		c.status.HistoryErr = nil
	}
	if c.status.State == domain.StateInitializing {
		c.status.State = domain.StateLive
	}
	c.mu.Unlock()

	if e.err == nil {
		accepted = c.view.Merge(e.messages)
		c.log.Debug("History merged", "fetched", len(e.messages), "accepted", len(accepted), "resync", e.resync)
		c.publishView()
		if e.resync {
			for _, message := range accepted {
				c.notifyNew(message)
			}
		}
	}
	c.notifyStatus()
}

func (c *Controller) onFeedOpened(e feedOpened) {
	if e.generation != c.generation {
		if e.sub != nil {
			c.spawn(func() { _ = e.sub.Close() })
		}
		return
	}
	if e.err != nil {
		c.onFeedDropped(e.err)
		return
	}

	c.sub = e.sub
	c.mu.Lock()
	c.status.FeedErr = nil
	if e.generation > 0 {
		c.status.Reconnects++
	}
	c.mu.Unlock()

	if e.generation > 0 {
		c.log.Info("Change feed reopened", "generation", e.generation)
		c.reconnect.reset()
		c.spawn(func() { c.fetchHistory(true) })
	}
	c.notifyStatus()
}

func (c *Controller) onFeedDropped(err error) {
	if err == nil {
		err = chaterrors.ErrFeedDisconnected
	}
	if !errors.Is(err, chaterrors.ErrFeedDisconnected) {
		err = fmt.Errorf("%w: %w", chaterrors.ErrFeedDisconnected, err)
	}
	c.mu.Lock()
	c.status.FeedErr = err
	c.mu.Unlock()
	c.log.Warn("Change feed unavailable", "error", err)
	c.notifyStatus()
	c.scheduleReopen()
}

func (c *Controller) scheduleReopen() {
	delay, ok := c.reconnect.next()
	if !ok {
		if c.cfg.Reconnect.Enabled() {
			c.log.Warn("Reconnect attempts exhausted, running without feed", "attempts", c.reconnect.attempts)
		}
		return
	}
	c.generation++
	generation := c.generation
	c.log.Debug("Reopening change feed", "delay", delay, "attempt", c.reconnect.attempts)
	c.spawn(func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			c.enqueue(reopenDue{generation: generation})
		case <-c.ctx.Done():
		}
	})
}

func (c *Controller) publishView() {
	snapshot := c.view.Snapshot()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.snapshot = snapshot
	c.status.Len = len(snapshot)
	observers := slices.Clone(c.onView)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(slices.Clone(snapshot))
	}
}

func (c *Controller) notifyNew(message domain.Message) {
	c.mu.RLock()
	observers := slices.Clone(c.onNew)
	c.mu.RUnlock()
	for _, fn := range observers {
		fn(message)
	}
}

func (c *Controller) notifyStatus() {
	c.mu.RLock()
	status := c.status
	observers := slices.Clone(c.onStatus)
	c.mu.RUnlock()
	for _, fn := range observers {
		fn(status)
	}
}

func (c *Controller) setSendErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.SendErr = err
}

func (c *Controller) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Backlog exposes the event queue for capacity sampling only.
func (c *Controller) Backlog() any {
	return c.events
}
