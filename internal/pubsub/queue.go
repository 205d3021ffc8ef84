package pubsub

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Send after Close.
var ErrQueueClosed = errors.New("queue is closed")

// Queue is an unbounded many-producer, single-consumer FIFO.
//
// Send never blocks and never drops. Values from one producer are received in
// the order they were sent; values from different producers interleave in
// whatever order they reached the queue. After Close, values already queued
// are still delivered before Recv reports the queue drained.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	// ready holds at most one token; it is signalled whenever items are
	// appended or the queue is closed.
	ready chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Send appends v to the queue.
func (q *Queue[T]) Send(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.signal()
	return nil
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Recv blocks until a value is available, ctx is done, or the queue is
// closed and empty. ok is false in the last two cases.
func (q *Queue[T]) Recv(ctx context.Context) (v T, ok bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v = q.items[0]
			var zero T
			q.items[0] = zero
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			if remaining > 0 {
				q.signal()
			}
			return v, true
		}
		if q.closed {
			q.mu.Unlock()
			q.signal()
			return v, false
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			return v, false
		}
	}
}

// TryRecv returns the next value without blocking.
func (q *Queue[T]) TryRecv() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return v, false
	}
	v = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

// Close stops accepting values. Idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.signal()
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued values.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
