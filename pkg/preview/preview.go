// Package preview consumes images from a flow edge, JPEG-encodes them and
// fans them out to websocket clients through a hub.
package preview

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-flowcam/pkg/flow"
	"github.com/teslashibe/go-flowcam/pkg/hub"
	"github.com/teslashibe/go-flowcam/pkg/video"
)

// DefaultQuality is the JPEG quality used when Config.Quality is unset.
const DefaultQuality = 80

// Config holds encoder settings.
type Config struct {
	// Quality is the JPEG quality, 1-100. Default: 80.
	Quality int `yaml:"quality"`

	// MinInterval drops images that arrive sooner than this after the last
	// encoded one. 0 encodes every image.
	MinInterval time.Duration `yaml:"min_interval"`
}

// Frame is one encoded preview image.
type Frame struct {
	Seq       uint64    `json:"seq"`
	TraceID   string    `json:"trace_id"`
	Timestamp time.Time `json:"timestamp"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	JPEG      []byte    `json:"-"`
}

// Stats is a snapshot of encoder counters.
type Stats struct {
	Encoded uint64 `json:"encoded"`
	Skipped uint64 `json:"skipped"`
	Failed  uint64 `json:"failed"`
	LastSeq uint64 `json:"last_seq"`
}

// Encoder drains an edge and publishes JPEG frames.
type Encoder struct {
	edge    *flow.Edge[*video.Image]
	hub     *hub.Hub
	cfg     Config
	logger  *slog.Logger
	lastEnc time.Time

	mu     sync.RWMutex
	latest *Frame

	encoded atomic.Uint64
	skipped atomic.Uint64
	failed  atomic.Uint64
}

// New creates an encoder reading from edge. h may be nil, in which case
// frames are only kept for Latest. A nil logger uses slog.Default().
func New(edge *flow.Edge[*video.Image], h *hub.Hub, cfg Config, logger *slog.Logger) *Encoder {
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = DefaultQuality
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Encoder{
		edge:   edge,
		hub:    h,
		cfg:    cfg,
		logger: logger.With("component", "preview", "edge", edge.Name()),
	}
}

// Run encodes images until ctx is done or the edge is closed and drained.
// Both end the run without error.
func (e *Encoder) Run(ctx context.Context) error {
	for {
		img, err := e.edge.Recv(ctx)
		switch {
		case err == nil:
		case errors.Is(err, flow.ErrEdgeClosed), ctx.Err() != nil:
			return nil
		default:
			return err
		}
		e.Handle(img)
	}
}

// Handle encodes one image and publishes it. It is not safe for concurrent
// use; Run calls it from a single goroutine.
func (e *Encoder) Handle(img *video.Image) {
	if e.cfg.MinInterval > 0 && !e.lastEnc.IsZero() && time.Since(e.lastEnc) < e.cfg.MinInterval {
		e.skipped.Add(1)
		return
	}

	data, err := video.EncodeJPEG(img, e.cfg.Quality)
	if err != nil {
		e.failed.Add(1)
		e.logger.Warn("encode failed", "seq", img.Seq, "error", err)
		return
	}
	e.lastEnc = time.Now()
	e.encoded.Add(1)

	f := &Frame{
		Seq:       img.Seq,
		TraceID:   img.TraceID,
		Timestamp: img.Timestamp,
		Width:     img.Width,
		Height:    img.Height,
		JPEG:      data,
	}
	e.mu.Lock()
	e.latest = f
	e.mu.Unlock()

	if e.hub != nil {
		// Metadata precedes the binary frame it describes.
		if err := e.hub.BroadcastJSON(f); err != nil {
			e.logger.Debug("metadata encode failed", "error", err)
		}
		e.hub.BroadcastBinary(data)
	}
	e.logger.Debug("frame encoded", "seq", f.Seq, "trace_id", f.TraceID, "bytes", len(data))
}

// Latest returns the most recently encoded frame.
func (e *Encoder) Latest() (Frame, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.latest == nil {
		return Frame{}, false
	}
	return *e.latest, true
}

// Stats returns a snapshot of the encoder counters.
func (e *Encoder) Stats() Stats {
	s := Stats{
		Encoded: e.encoded.Load(),
		Skipped: e.skipped.Load(),
		Failed:  e.failed.Load(),
	}
	if f, ok := e.Latest(); ok {
		s.LastSeq = f.Seq
	}
	return s
}
