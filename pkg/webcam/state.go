package webcam

import (
	"github.com/teslashibe/go-flowcam/pkg/camera"
	"github.com/teslashibe/go-flowcam/pkg/flow"
)

// State is the public view of a node's lifecycle.
type State int

const (
	// Uninitialized means no device handle is held.
	Uninitialized State = iota
	// Ready means a validated device handle is held.
	Ready
	// Failed means the node is unusable until Reset.
	Failed
)

// String returns a lowercase state name.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// nodeState is the tagged lifecycle state. Only ready carries a device, so a
// capture without a device cannot be expressed.
type nodeState interface {
	state() State
}

type uninitialized struct{}

type ready struct {
	dev camera.Device
}

type failed struct {
	err *flow.ReadyError
}

func (uninitialized) state() State { return Uninitialized }
func (ready) state() State         { return Ready }
func (failed) state() State        { return Failed }
