package camera

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
)

// Backend names a capture implementation.
type Backend string

const (
	// BackendAuto selects the best registered backend for the platform.
	BackendAuto Backend = "auto"
	// BackendOpenCV captures through OpenCV's VideoCapture.
	BackendOpenCV Backend = "opencv"
	// BackendV4L2 captures through Linux Video4Linux2.
	BackendV4L2 Backend = "v4l2"
	// BackendReplay plays back recorded frame logs.
	BackendReplay Backend = "replay"
	// BackendMock generates test patterns.
	BackendMock Backend = "mock"
)

// Registry maps backend names to openers. The host builds one explicitly;
// there is no package-level registration.
type Registry struct {
	mu      sync.RWMutex
	openers map[Backend]Opener
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{openers: make(map[Backend]Opener)}
}

// Register adds or replaces the opener for a backend.
func (r *Registry) Register(b Backend, o Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openers[b] = o
}

// Backends returns the registered backend names, sorted.
func (r *Registry) Backends() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Backend, 0, len(r.openers))
	for b := range r.openers {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve returns the concrete backend b stands for. BackendAuto resolves to
// the first registered entry of the platform preference list.
func (r *Registry) Resolve(b Backend) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if b == "" || b == BackendAuto {
		for _, candidate := range preferredBackends(runtime.GOOS) {
			if _, ok := r.openers[candidate]; ok {
				return candidate, nil
			}
		}
		return "", fmt.Errorf("%w: no backend registered for %s", ErrUnknownBackend, runtime.GOOS)
	}
	if _, ok := r.openers[b]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownBackend, b)
	}
	return b, nil
}

// Opener returns the opener for b, resolving BackendAuto.
func (r *Registry) Opener(b Backend) (Opener, error) {
	resolved, err := r.Resolve(b)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.openers[resolved], nil
}

// preferredBackends lists hardware backends before synthetic ones.
func preferredBackends(goos string) []Backend {
	switch goos {
	case "linux":
		return []Backend{BackendV4L2, BackendOpenCV, BackendMock}
	default:
		return []Backend{BackendOpenCV, BackendMock}
	}
}
