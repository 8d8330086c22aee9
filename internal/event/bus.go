// Package event provides an in-memory implementation of the plugin.EventBus interface.
package event

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/HerbHall/coldguard/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ plugin.EventBus = (*Bus)(nil)

const defaultQueueSize = 256

// Bus is an in-memory event bus implementing plugin.EventBus.
//
// Publish runs handlers in the caller's goroutine. PublishAsync enqueues the
// event on each matching subscription; every subscription drains its own
// queue in order, so a subscriber sees async events in publish order and a
// slow subscriber only delays itself. When a queue is full the event is
// dropped for that subscriber and counted.
type Bus struct {
	mu        sync.RWMutex
	topics    map[string][]*subscription
	wildcard  []*subscription
	nextID    uint64
	queueSize int
	closed    bool
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	logger    *zap.Logger
}

type subscription struct {
	id      uint64
	topic   string // empty for wildcard subscriptions
	handler plugin.EventHandler
	queue   chan delivery
}

type delivery struct {
	ctx   context.Context
	event plugin.Event
}

// Option customizes a Bus.
type Option func(*Bus)

// WithQueueSize sets the per-subscription async queue length.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// NewBus creates a new in-memory event bus.
func NewBus(logger *zap.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bus{
		topics:    make(map[string][]*subscription),
		queueSize: defaultQueueSize,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// matching returns the subscriptions for topic. Caller holds b.mu.
func (b *Bus) matching(topic string) []*subscription {
	subs := make([]*subscription, 0, len(b.topics[topic])+len(b.wildcard))
	subs = append(subs, b.topics[topic]...)
	return append(subs, b.wildcard...)
}

// Publish dispatches an event synchronously to all matching handlers.
func (b *Bus) Publish(ctx context.Context, event plugin.Event) error {
	b.mu.RLock()
	subs := b.matching(event.Topic)
	b.mu.RUnlock()

	for _, s := range subs {
		b.safeCall(ctx, s.handler, event)
	}
	return nil
}

// PublishAsync enqueues an event for every matching subscription.
func (b *Bus) PublishAsync(ctx context.Context, event plugin.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, s := range b.matching(event.Topic) {
		select {
		case s.queue <- delivery{ctx: ctx, event: event}:
		default:
			b.dropped.Add(1)
			b.logger.Warn("subscriber queue full, dropping event",
				zap.String("topic", event.Topic),
				zap.String("source", event.Source),
				zap.Uint64("subscription", s.id),
			)
		}
	}
}

// Subscribe registers a handler for a specific topic. Returns an unsubscribe function.
func (b *Bus) Subscribe(topic string, handler plugin.EventHandler) (unsubscribe func()) {
	return b.subscribe(topic, handler)
}

// SubscribeAll registers a handler for all topics. Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler plugin.EventHandler) (unsubscribe func()) {
	return b.subscribe("", handler)
}

func (b *Bus) subscribe(topic string, handler plugin.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &subscription{
		id:      b.nextID,
		topic:   topic,
		handler: handler,
		queue:   make(chan delivery, b.queueSize),
	}
	b.nextID++
	if b.closed {
		close(s.queue)
		return func() {}
	}
	if topic == "" {
		b.wildcard = append(b.wildcard, s)
	} else {
		b.topics[topic] = append(b.topics[topic], s)
	}

	b.wg.Add(1)
	go b.drain(s)

	var once sync.Once
	return func() { once.Do(func() { b.remove(s) }) }
}

// remove detaches s and closes its queue; events already queued still run.
func (b *Bus) remove(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.topic == "" {
		b.wildcard = without(b.wildcard, s)
	} else {
		b.topics[s.topic] = without(b.topics[s.topic], s)
	}
	if !b.closed {
		close(s.queue)
	}
}

func without(subs []*subscription, s *subscription) []*subscription {
	out := subs[:0:0]
	for _, e := range subs {
		if e != s {
			out = append(out, e)
		}
	}
	return out
}

func (b *Bus) drain(s *subscription) {
	defer b.wg.Done()
	for d := range s.queue {
		b.safeCall(d.ctx, s.handler, d.event)
	}
}

// Close stops accepting async events and waits until every queued event has
// been handled or ctx expires.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		for _, subs := range b.topics {
			for _, s := range subs {
				close(s.queue)
			}
		}
		for _, s := range b.wildcard {
			close(s.queue)
		}
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many async deliveries were discarded on full queues.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

func (b *Bus) safeCall(ctx context.Context, handler plugin.EventHandler, event plugin.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.String("source", event.Source),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, event)
}
