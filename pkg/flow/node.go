// Package flow defines the contract between dataflow nodes and the host
// graph that drives them: the node lifecycle, typed output ports, bounded
// edges to consumers, and the errors a node reports upward.
//
// A host calls Probe exactly once before any Update, and never overlaps
// calls into the same node. Each Update may push zero or one value per
// output port.
package flow

// Node is a single stage in a dataflow graph.
type Node interface {
	// Probe validates the node before it is scheduled.
	// Failures are returned as *ReadyError and are fatal for the instance.
	Probe() error

	// Update runs one scheduling cycle.
	// Failures are returned as *UpdateError; the host decides whether to
	// keep scheduling based on the error's Stage.
	Update() error
}

// Closer is implemented by nodes that hold resources which must be
// released when the host tears the graph down.
type Closer interface {
	Close() error
}

// Signal is the payload of trigger edges that carry no data.
type Signal struct{}
