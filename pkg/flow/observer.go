package flow

import "sync"

// Listener is woken after an output port delivered a value.
type Listener func(port string)

// ChangeObserver holds the listeners of one graph execution context.
// It is created by the host and handed to outputs at construction, so no
// notification path goes through package-level state.
type ChangeObserver struct {
	mu        sync.RWMutex
	listeners []Listener
}

// NewChangeObserver creates an observer with the given listeners.
func NewChangeObserver(listeners ...Listener) *ChangeObserver {
	return &ChangeObserver{listeners: listeners}
}

// Subscribe adds a listener.
func (o *ChangeObserver) Subscribe(l Listener) {
	if l == nil {
		return
	}
	o.mu.Lock()
	o.listeners = append(o.listeners, l)
	o.mu.Unlock()
}

// Notify calls every listener with the port name.
func (o *ChangeObserver) Notify(port string) {
	o.mu.RLock()
	listeners := make([]Listener, len(o.listeners))
	copy(listeners, o.listeners)
	o.mu.RUnlock()

	for _, l := range listeners {
		l(port)
	}
}
