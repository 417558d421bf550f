package webcam

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-flowcam/pkg/camera"
	"github.com/teslashibe/go-flowcam/pkg/flow"
	"github.com/teslashibe/go-flowcam/pkg/video"
)

// ErrClosed is the readiness error of a node torn down with Close.
var ErrClosed = errors.New("webcam: node closed")

// Probe stages reported in flow.ReadyError.Stage.
const (
	StageOpen        = "open"
	StageTestCapture = "test-capture"
	StageClosed      = "closed"
)

// Node is a camera source node. The zero value is not usable; create nodes
// with New.
//
// All lifecycle methods take the node's mutex for their whole duration, so
// the device handle is only ever reached by one caller at a time and the
// mutex is released on every exit path.
type Node struct {
	cfg      Config
	opener   camera.Opener
	observer *flow.ChangeObserver
	trigger  *flow.Edge[flow.Signal]

	// Output receives one decoded image per successful update.
	Output *flow.Output[*video.Image]

	mu sync.Mutex
	st nodeState

	kind   atomic.Int32
	device atomic.Pointer[deviceInfo]
	stats  counters
}

type deviceInfo struct {
	backend string
	format  camera.Format
}

// Option configures a Node.
type Option func(*Node)

// WithObserver wires the output port to the execution context's observer.
func WithObserver(o *flow.ChangeObserver) Option {
	return func(n *Node) {
		n.observer = o
	}
}

// WithTrigger makes every capture wait for a token on e. Updates with no
// token pending succeed without touching the device.
func WithTrigger(e *flow.Edge[flow.Signal]) Option {
	return func(n *Node) {
		n.trigger = e
	}
}

// New creates a node in the Uninitialized state. The device is not opened
// until Probe.
func New(cfg Config, opener camera.Opener, opts ...Option) *Node {
	n := &Node{
		cfg:    cfg.withDefaults(),
		opener: opener,
		st:     uninitialized{},
	}
	for _, opt := range opts {
		opt(n)
	}
	n.Output = flow.NewOutput[*video.Image](n.cfg.Output, n.observer)
	return n
}

// Name returns the node name.
func (n *Node) Name() string {
	return n.cfg.Name
}

// Config returns the node configuration.
func (n *Node) Config() Config {
	return n.cfg
}

// State returns the current lifecycle state without waiting for an
// in-flight capture.
func (n *Node) State() State {
	return State(n.kind.Load())
}

func (n *Node) setState(st nodeState) {
	n.st = st
	n.kind.Store(int32(st.state()))
	if r, ok := st.(ready); ok {
		n.device.Store(&deviceInfo{backend: r.dev.Name(), format: r.dev.Format()})
	} else {
		n.device.Store(nil)
	}
}

// Probe opens the configured device and confirms it delivers a frame.
//
// Open failures leave the node Uninitialized and return a *flow.ReadyError
// wrapping a *camera.DeviceError. A failed test capture closes the device,
// moves the node to Failed and returns a *flow.ReadyError wrapping the
// *camera.CaptureError. Probe on a Ready node is a no-op; Probe on a Failed
// node returns the stored error without touching any device.
func (n *Node) Probe() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch st := n.st.(type) {
	case ready:
		return nil
	case failed:
		return st.err
	}

	idx := n.cfg.Index
	if idx < 0 {
		return n.readyError(StageOpen, camera.NewDeviceError(camera.Unavailable, "", idx,
			fmt.Errorf("negative device index")))
	}
	if err := n.cfg.Request.Validate(); err != nil {
		return n.readyError(StageOpen, camera.NewDeviceError(camera.UnsupportedFormat, "", idx, err))
	}

	dev, err := n.opener.Open(idx, n.cfg.Request)
	if err != nil {
		return n.readyError(StageOpen, camera.AsDeviceError(err, "", idx))
	}
	if dev == nil {
		return n.readyError(StageOpen, camera.NewDeviceError(camera.Unavailable, "", idx,
			fmt.Errorf("opener returned no device")))
	}

	// The test frame is discarded.
	if _, err := dev.Capture(); err != nil {
		_ = dev.Close()
		re := n.readyError(StageTestCapture, camera.AsCaptureError(err, dev.Name(), idx))
		n.setState(failed{err: re})
		return re
	}

	n.setState(ready{dev: dev})
	return nil
}

func (n *Node) readyError(stage string, err error) *flow.ReadyError {
	return &flow.ReadyError{Node: n.cfg.Name, Stage: stage, Err: err}
}

func (n *Node) updateError(stage flow.Stage, err error) *flow.UpdateError {
	return &flow.UpdateError{Node: n.cfg.Name, Stage: stage, Err: err}
}

// Update captures one frame, decodes it and sends the image on Output.
//
// Outside the Ready state Update returns a configuration error without any
// device access. With a trigger attached, an update with no pending token is
// an idle success and a closed trigger edge is a configuration error.
// Capture, decode and send failures are returned with their
// stage and never change the node state.
func (n *Node) Update() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.stats.updates.Add(1)

	st, ok := n.st.(ready)
	if !ok {
		n.stats.configErrors.Add(1)
		return n.updateError(flow.StageConfiguration, &flow.ConfigurationError{State: n.st.state().String()})
	}

	if n.trigger != nil {
		_, err := n.trigger.Next()
		if errors.Is(err, flow.ErrEdgeClosed) {
			n.stats.configErrors.Add(1)
			return n.updateError(flow.StageConfiguration, fmt.Errorf("trigger %s: %w", n.trigger.Name(), err))
		}
		if err != nil {
			n.stats.idle.Add(1)
			return nil
		}
	}

	raw, err := st.dev.Capture()
	if err != nil {
		n.stats.captureErrors.Add(1)
		return n.updateError(flow.StageCapture, camera.AsCaptureError(err, st.dev.Name(), n.cfg.Index))
	}

	img, err := video.Decode(raw)
	if err != nil {
		n.stats.decodeErrors.Add(1)
		return n.updateError(flow.StageDecode, err)
	}

	if err := n.Output.Send(img); err != nil {
		n.stats.sendErrors.Add(1)
		return n.updateError(flow.StageSend, err)
	}

	n.stats.emitted.Add(1)
	return nil
}

// Reset releases any device and returns the node to Uninitialized so that
// Probe can run again.
func (n *Node) Reset() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	err := n.release()
	n.setState(uninitialized{})
	return err
}

// Close releases the device and leaves the node Failed. An in-flight
// capture finishes first. It is safe to call Close multiple times.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	err := n.release()
	n.setState(failed{err: n.readyError(StageClosed, ErrClosed)})
	return err
}

func (n *Node) release() error {
	if st, ok := n.st.(ready); ok {
		return st.dev.Close()
	}
	return nil
}

// Ensure Node implements the host contract.
var (
	_ flow.Node   = (*Node)(nil)
	_ flow.Closer = (*Node)(nil)
)
