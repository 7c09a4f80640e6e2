// Package memory provides the in-process admission queue.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/webscout/webscout/internal/metrics"
	"github.com/webscout/webscout/internal/scout"
)

// Queue is an unbounded in-memory FIFO with context-aware operations.
// Enqueue never blocks, so a batch of any size is admitted immediately; the
// worker pool is the concurrency bound. Children of a batch reach workers in
// submission order.
type Queue struct {
	mu     sync.Mutex
	items  []scout.QueueItem
	closed bool
	// wake is closed and replaced on every Enqueue/Close so all parked
	// Dequeue callers re-check the buffer.
	wake chan struct{}
}

// NewQueue constructs a new queue. capacity sizes the initial buffer; the
// queue grows past it as needed.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		items: make([]scout.QueueItem, 0, capacity),
		wake:  make(chan struct{}),
	}
}

// Enqueue appends a child job without blocking. It fails only when the
// context has already ended or the queue was closed for shutdown.
func (q *Queue) Enqueue(ctx context.Context, item scout.QueueItem) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("enqueue canceled: %w", err)
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errors.New("queue closed")
	}
	q.items = append(q.items, item)
	depth := len(q.items)
	close(q.wake)
	q.wake = make(chan struct{})
	q.mu.Unlock()

	metrics.SetQueueDepth(depth)
	return nil
}

// Dequeue pops the next child job, blocking until one is available, the
// context ends, or the queue is closed and drained.
func (q *Queue) Dequeue(ctx context.Context) (scout.QueueItem, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			if len(q.items) == 0 {
				q.items = nil
			}
			depth := len(q.items)
			q.mu.Unlock()
			metrics.SetQueueDepth(depth)
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			return scout.QueueItem{}, errors.New("queue closed")
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return scout.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-wake:
		}
	}
}

// Depth reports the number of queued items.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops admission. Already-queued items remain dequeueable until
// drained. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.wake)
}
