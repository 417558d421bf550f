package flow

import (
	"errors"
	"fmt"
)

// Sentinel errors for port and lifecycle conditions.
var (
	// ErrNotReady is matched by every *ConfigurationError.
	ErrNotReady = errors.New("flow: node not ready")

	// ErrNoDestination is returned when an output has no attached edges.
	ErrNoDestination = errors.New("flow: no valid destination")

	// ErrEdgeFull is returned when an edge buffer cannot take another value.
	ErrEdgeFull = errors.New("flow: edge full")

	// ErrEdgeClosed is returned when sending to or receiving from a closed edge.
	ErrEdgeClosed = errors.New("flow: edge closed")

	// ErrEdgeEmpty is returned by a non-blocking receive with nothing queued.
	ErrEdgeEmpty = errors.New("flow: edge empty")
)

// Stage identifies which part of an update cycle failed.
type Stage string

const (
	StageConfiguration Stage = "configuration"
	StageCapture       Stage = "capture"
	StageDecode        Stage = "decode"
	StageSend          Stage = "send"
)

// ConfigurationError reports that a node was driven out of order, for
// example Update before a successful Probe. It never implies a device fault.
type ConfigurationError struct {
	// State is the node state at the time of the call.
	State string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("flow: update called in state %s", e.State)
}

// Is reports ErrNotReady as a match.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrNotReady
}

// SendError reports a failed delivery on an output port.
type SendError struct {
	// Port is the name of the output port.
	Port string
	Err  error
}

// Error implements the error interface.
func (e *SendError) Error() string {
	if e.Port == "" {
		return fmt.Sprintf("flow: send: %v", e.Err)
	}
	return fmt.Sprintf("flow: send on %s: %v", e.Port, e.Err)
}

// Unwrap returns the underlying error.
func (e *SendError) Unwrap() error {
	return e.Err
}

// ReadyError is the only error a node's Probe returns.
type ReadyError struct {
	Node  string
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *ReadyError) Error() string {
	return fmt.Sprintf("flow [%s]: not ready (%s): %v", e.Node, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *ReadyError) Unwrap() error {
	return e.Err
}

// UpdateError is the only error a node's Update returns.
type UpdateError struct {
	Node  string
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *UpdateError) Error() string {
	return fmt.Sprintf("flow [%s]: %s failed: %v", e.Node, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *UpdateError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage of an *UpdateError anywhere in err's chain,
// or the empty stage if there is none.
func StageOf(err error) Stage {
	var ue *UpdateError
	if errors.As(err, &ue) {
		return ue.Stage
	}
	return ""
}
