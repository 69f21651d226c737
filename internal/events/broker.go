package events

import (
	"context"
	"sync"

	"opmelink-api/internal/metrics"

	"go.uber.org/zap"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 32

// Broker fans events out to in-process subscribers over buffered channels.
// A subscriber that is not keeping up loses events instead of slowing the publisher.
type Broker struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	closed bool

	metrics *metrics.Metrics
	logger  *zap.Logger
}

// Subscription receives the events accepted by its filter on C.
// C is closed by Close or when the broker shuts down.
type Subscription struct {
	C <-chan LinkCreated

	id     uint64
	ch     chan LinkCreated
	filter Filter
	broker *Broker
	once   sync.Once
}

// NewBroker creates a Broker. buffer <= 0 selects DefaultBuffer.
func NewBroker(buffer int, m *metrics.Metrics, logger *zap.Logger) *Broker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broker{
		subs:    make(map[uint64]*Subscription),
		buffer:  buffer,
		metrics: m,
		logger:  logger.Named("broker"),
	}
}

// Subscribe registers a listener. A nil filter accepts everything.
func (b *Broker) Subscribe(filter Filter) *Subscription {
	ch := make(chan LinkCreated, b.buffer)
	sub := &Subscription{C: ch, ch: ch, filter: filter, broker: b}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		sub.once.Do(func() { close(ch) })
		return sub
	}
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	return sub
}

// Publish delivers ev to every matching subscriber without blocking.
func (b *Broker) Publish(ctx context.Context, ev LinkCreated) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.filter != nil && !sub.filter(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.metrics.EventDropped()
			b.logger.Warn("subscriber too slow, event dropped",
				zap.Uint64("subscription", sub.id),
				zap.String("event_id", ev.ID),
			)
		}
	}
	return nil
}

// Subscribers returns the number of active subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.once.Do(func() { close(sub.ch) })
	}
}

// Close unsubscribes and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.broker.mu.Lock()
	delete(s.broker.subs, s.id)
	s.broker.mu.Unlock()

	s.once.Do(func() { close(s.ch) })
}

// Ensure Broker implements Publisher
var _ Publisher = (*Broker)(nil)
