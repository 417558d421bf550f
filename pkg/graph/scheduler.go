// Package graph drives a single flow.Node the way a dataflow host would:
// one readiness probe, then periodic updates until the context ends.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-flowcam/pkg/camera"
	"github.com/teslashibe/go-flowcam/pkg/flow"
)

// Config holds scheduler settings.
type Config struct {
	// Interval between updates. Default: 33ms.
	Interval time.Duration `yaml:"interval"`

	// MaxConsecutiveFailures stops the run after this many capture failures
	// in a row. 0 means unlimited.
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures"`
}

// DefaultConfig runs at roughly 30 updates per second and gives up after
// 30 consecutive capture failures.
func DefaultConfig() Config {
	return Config{
		Interval:               33 * time.Millisecond,
		MaxConsecutiveFailures: 30,
	}
}

// ErrTooManyFailures is returned by Run when MaxConsecutiveFailures is hit.
var ErrTooManyFailures = errors.New("graph: too many consecutive capture failures")

// Scheduler runs one node.
type Scheduler struct {
	name   string
	node   flow.Node
	cfg    Config
	logger *slog.Logger
}

// New creates a scheduler for node. A nil logger uses slog.Default().
func New(name string, node flow.Node, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		name:   name,
		node:   node,
		cfg:    cfg,
		logger: logger.With("component", "graph", "node", name),
	}
}

// Run probes the node and then updates it every interval until ctx is done
// or an update error ends the run. A cancelled context returns nil. The node
// is closed on exit when it implements flow.Closer.
func (s *Scheduler) Run(ctx context.Context) error {
	defer func() {
		if c, ok := s.node.(flow.Closer); ok {
			if cerr := c.Close(); cerr != nil {
				s.logger.Warn("close failed", "error", cerr)
			}
		}
	}()

	if err := s.node.Probe(); err != nil {
		s.logger.Error("probe failed", "error", err)
		return fmt.Errorf("probe %s: %w", s.name, err)
	}
	s.logger.Info("node ready", "interval", s.cfg.Interval)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
		}

		uerr := s.node.Update()
		if uerr == nil {
			if failures > 0 {
				s.logger.Info("capture recovered", "after_failures", failures)
			}
			failures = 0
			continue
		}

		switch flow.StageOf(uerr) {
		case flow.StageConfiguration:
			s.logger.Error("node not ready", "error", uerr)
			return uerr

		case flow.StageCapture:
			failures++
			if !camera.IsTemporary(uerr) {
				s.logger.Error("capture failed", "error", uerr)
				return uerr
			}
			if s.cfg.MaxConsecutiveFailures > 0 && failures >= s.cfg.MaxConsecutiveFailures {
				s.logger.Error("giving up", "failures", failures, "error", uerr)
				return fmt.Errorf("%w: %w", ErrTooManyFailures, uerr)
			}
			s.logger.Debug("temporary capture failure", "failures", failures, "error", uerr)

		case flow.StageDecode, flow.StageSend:
			s.logger.Warn("frame dropped", "error", uerr)

		default:
			s.logger.Warn("update failed", "error", uerr)
		}
	}
}
