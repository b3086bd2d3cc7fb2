// Package queue buffers observation windows between the HTTP adapter and the
// worker pool.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/enemy/internal/domain/model"
	"github.com/okian/enemy/pkg/metrics"
)

const defaultQueueCapacity = 10000

// Event is the payload flowing through the queue.
type Event = model.Observation

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an event without blocking. Returns ErrFull or ErrClosed
	// when the event was not accepted.
	Enqueue(ctx context.Context, e Event) error
	// Dequeue returns a channel of events, closed once the queue is closed
	// and drained or ctx is done.
	Dequeue(ctx context.Context) <-chan Event
	// Len returns the current number of queued events.
	Len() int
	// Capacity returns the maximum number of queued events.
	Capacity() int
	// Close stops accepting events. Queued events are still delivered.
	Close() error
}

type envelope struct {
	event      Event
	enqueuedAt time.Time
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	events   chan envelope
	capacity int

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan envelope, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	q.reportSize()
	return q
}

func (q *InMemoryQueue) reportSize() {
	size := len(q.events)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}

// Enqueue adds an event to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}

	select {
	case q.events <- envelope{event: e, enqueuedAt: time.Now()}:
		metrics.RecordQueueEnqueue()
		q.reportSize()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns a channel that receives events as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case env, ok := <-q.events:
				if !ok {
					return
				}
				select {
				case out <- env.event:
					metrics.RecordQueueDequeue()
					metrics.RecordQueueProcessingLatency(float64(time.Since(env.enqueuedAt).Microseconds()) / 1000)
					q.reportSize()
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued events.
func (q *InMemoryQueue) Len() int {
	return len(q.events)
}

// Capacity returns the maximum number of queued events.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
