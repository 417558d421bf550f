package flow

import (
	"errors"
	"fmt"
	"sync"
)

// Output is a typed single-producer broadcast port. Every value sent is
// offered to all attached edges; the same value is shared by all consumers,
// so producers must not mutate a value after sending it.
type Output[T any] struct {
	name     string
	observer *ChangeObserver

	mu    sync.RWMutex
	edges []*Edge[T]
}

// NewOutput creates an output port. observer may be nil.
func NewOutput[T any](name string, observer *ChangeObserver) *Output[T] {
	return &Output[T]{
		name:     name,
		observer: observer,
	}
}

// Name returns the port name.
func (o *Output[T]) Name() string {
	return o.name
}

// Connect attaches an edge. Connecting the same edge twice is a no-op.
func (o *Output[T]) Connect(e *Edge[T]) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, existing := range o.edges {
		if existing == e {
			return
		}
	}
	o.edges = append(o.edges, e)
}

// Disconnect detaches an edge. Unknown edges are ignored.
func (o *Output[T]) Disconnect(e *Edge[T]) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, existing := range o.edges {
		if existing == e {
			o.edges = append(o.edges[:i], o.edges[i+1:]...)
			return
		}
	}
}

// Consumers returns the number of attached edges.
func (o *Output[T]) Consumers() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.edges)
}

// Send offers v to every attached edge without blocking.
//
// With no edges attached Send returns a *SendError wrapping
// ErrNoDestination. If some edges reject the value, the others keep it and
// the returned *SendError joins the per-edge failures. The observer is
// notified whenever at least one edge accepted the value.
func (o *Output[T]) Send(v T) error {
	o.mu.RLock()
	edges := make([]*Edge[T], len(o.edges))
	copy(edges, o.edges)
	o.mu.RUnlock()

	if len(edges) == 0 {
		return &SendError{Port: o.name, Err: ErrNoDestination}
	}

	var (
		errs      []error
		delivered int
	)
	for _, e := range edges {
		if err := e.Offer(v); err != nil {
			errs = append(errs, fmt.Errorf("edge %s: %w", e.Name(), err))
			continue
		}
		delivered++
	}

	if delivered > 0 && o.observer != nil {
		o.observer.Notify(o.name)
	}
	if len(errs) > 0 {
		return &SendError{Port: o.name, Err: errors.Join(errs...)}
	}
	return nil
}
