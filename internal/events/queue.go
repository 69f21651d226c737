package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"opmelink-api/internal/metrics"

	"go.uber.org/zap"
)

// Queue defaults.
const (
	DefaultQueueSize      = 256
	DefaultDeliverTimeout = 5 * time.Second
)

// ErrQueueFull is returned by Queue.Publish when the backlog is at capacity.
var ErrQueueFull = errors.New("event queue full")

// Queue hands events to a remote target from a background goroutine, so a
// slow or unreachable broker never holds up the caller. Events that do not
// fit in the backlog are dropped and counted.
type Queue struct {
	target  Publisher
	ch      chan LinkCreated
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewQueue starts draining into target. size <= 0 selects DefaultQueueSize and
// timeout <= 0 selects DefaultDeliverTimeout.
func NewQueue(target Publisher, size int, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultDeliverTimeout
	}
	q := &Queue{
		target:  target,
		ch:      make(chan LinkCreated, size),
		timeout: timeout,
		metrics: m,
		logger:  logger.Named("event_queue"),
		done:    make(chan struct{}),
	}
	go q.drain()
	return q
}

// Publish enqueues ev without waiting for delivery.
func (q *Queue) Publish(_ context.Context, ev LinkCreated) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueFull
	}
	select {
	case q.ch <- ev:
		return nil
	default:
		q.metrics.EventDropped()
		return ErrQueueFull
	}
}

// Pending returns the number of events waiting for delivery.
func (q *Queue) Pending() int {
	return len(q.ch)
}

// Close stops accepting events and waits until the backlog is delivered or
// ctx is done.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) drain() {
	defer close(q.done)
	for ev := range q.ch {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		err := q.target.Publish(ctx, ev)
		cancel()
		if err != nil {
			q.metrics.EventDropped()
			q.logger.Warn("event not delivered",
				zap.String("event_id", ev.ID),
				zap.String("owner_id", ev.OwnerID),
				zap.Error(err),
			)
		}
	}
}

// Ensure Queue implements Publisher
var _ Publisher = (*Queue)(nil)
