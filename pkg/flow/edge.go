package flow

import (
	"context"
	"sync"
)

// DefaultEdgeCapacity is used when NewEdge is given a non-positive capacity.
const DefaultEdgeCapacity = 8

// Edge is a bounded, single-consumer queue between an output port and one
// consumer. Sends never block: a full edge rejects the value.
type Edge[T any] struct {
	name string
	ch   chan T

	mu     sync.Mutex
	closed bool
}

// NewEdge creates an edge buffering up to capacity values.
func NewEdge[T any](name string, capacity int) *Edge[T] {
	if capacity <= 0 {
		capacity = DefaultEdgeCapacity
	}
	return &Edge[T]{
		name: name,
		ch:   make(chan T, capacity),
	}
}

// Name returns the edge name used in error messages.
func (e *Edge[T]) Name() string {
	return e.name
}

// Offer enqueues v without blocking.
func (e *Edge[T]) Offer(v T) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEdgeClosed
	}
	select {
	case e.ch <- v:
		return nil
	default:
		return ErrEdgeFull
	}
}

// Next returns the next queued value without blocking.
// It returns ErrEdgeEmpty when nothing is queued and ErrEdgeClosed once the
// edge is closed and drained.
func (e *Edge[T]) Next() (T, error) {
	var zero T
	select {
	case v, ok := <-e.ch:
		if !ok {
			return zero, ErrEdgeClosed
		}
		return v, nil
	default:
		e.mu.Lock()
		closed := e.closed
		e.mu.Unlock()
		if closed {
			return zero, ErrEdgeClosed
		}
		return zero, ErrEdgeEmpty
	}
}

// Recv blocks until a value arrives, the edge is closed and drained, or ctx
// is done.
func (e *Edge[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case v, ok := <-e.ch:
		if !ok {
			return zero, ErrEdgeClosed
		}
		return v, nil
	}
}

// Len returns the number of queued values.
func (e *Edge[T]) Len() int {
	return len(e.ch)
}

// Close marks the edge closed. Queued values can still be drained.
// It is safe to call Close multiple times.
func (e *Edge[T]) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	close(e.ch)
}
