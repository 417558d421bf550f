package webcam

import (
	"sync/atomic"

	"github.com/teslashibe/go-flowcam/pkg/camera"
)

type counters struct {
	updates       atomic.Uint64
	emitted       atomic.Uint64
	idle          atomic.Uint64
	configErrors  atomic.Uint64
	captureErrors atomic.Uint64
	decodeErrors  atomic.Uint64
	sendErrors    atomic.Uint64
}

// Stats contains node statistics.
type Stats struct {
	// Name is the node name.
	Name string `json:"name"`

	// State is the current lifecycle state.
	State State `json:"state"`

	// Backend is the device backend while Ready.
	Backend string `json:"backend,omitempty"`

	// Format is the negotiated device format while Ready.
	Format *camera.Format `json:"format,omitempty"`

	// Updates counts every Update call.
	Updates uint64 `json:"updates"`

	// FramesEmitted counts images sent on the output port.
	FramesEmitted uint64 `json:"frames_emitted"`

	// IdleUpdates counts updates skipped for lack of a trigger.
	IdleUpdates uint64 `json:"idle_updates"`

	ConfigurationErrors uint64 `json:"configuration_errors"`
	CaptureErrors       uint64 `json:"capture_errors"`
	DecodeErrors        uint64 `json:"decode_errors"`
	SendErrors          uint64 `json:"send_errors"`
}

// Stats returns a snapshot of the node's counters. It never waits for an
// in-flight capture.
func (n *Node) Stats() Stats {
	s := Stats{
		Name:                n.cfg.Name,
		State:               n.State(),
		Updates:             n.stats.updates.Load(),
		FramesEmitted:       n.stats.emitted.Load(),
		IdleUpdates:         n.stats.idle.Load(),
		ConfigurationErrors: n.stats.configErrors.Load(),
		CaptureErrors:       n.stats.captureErrors.Load(),
		DecodeErrors:        n.stats.decodeErrors.Load(),
		SendErrors:          n.stats.sendErrors.Load(),
	}
	if info := n.device.Load(); info != nil {
		f := info.format
		s.Backend = info.backend
		s.Format = &f
	}
	return s
}
