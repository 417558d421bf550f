// Package app wires a camera node, its preview consumer and the web server
// into one runnable process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-flowcam/internal/config"
	"github.com/teslashibe/go-flowcam/pkg/camera"
	"github.com/teslashibe/go-flowcam/pkg/camera/v4l2"
	"github.com/teslashibe/go-flowcam/pkg/flow"
	"github.com/teslashibe/go-flowcam/pkg/framelog"
	"github.com/teslashibe/go-flowcam/pkg/graph"
	"github.com/teslashibe/go-flowcam/pkg/hub"
	"github.com/teslashibe/go-flowcam/pkg/preview"
	"github.com/teslashibe/go-flowcam/pkg/video"
	"github.com/teslashibe/go-flowcam/pkg/web"
	"github.com/teslashibe/go-flowcam/pkg/webcam"
)

// App owns every component of a flowcam process.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	registry  *camera.Registry
	backend   camera.Backend
	recorder  *framelog.Writer
	node      *webcam.Node
	edge      *flow.Edge[*video.Image]
	hub       *hub.Hub
	preview   *preview.Encoder
	web       *web.Server
	scheduler *graph.Scheduler

	shutdownOnce sync.Once
}

// New validates cfg and returns an uninitialised App. A nil logger uses
// slog.Default().
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// Registry builds the backend registry for cfg. The OpenCV backend is only
// present in binaries built with the opencv tag.
func Registry(cfg config.CameraConfig) *camera.Registry {
	r := camera.NewRegistry()
	r.Register(camera.BackendMock, &camera.MockOpener{})
	r.Register(camera.BackendV4L2, &v4l2.Opener{Timeout: cfg.Timeout})
	if len(cfg.Replay) > 0 {
		r.Register(camera.BackendReplay, &framelog.Driver{Paths: cfg.Replay, Loop: cfg.Loop})
	}
	registerOpenCV(r)
	return r
}

// Init builds the node graph. Nothing touches the camera until Run.
func (a *App) Init() error {
	a.registry = Registry(a.cfg.Camera)

	backend, err := a.registry.Resolve(a.cfg.Camera.Backend)
	if err != nil {
		return err
	}
	a.backend = backend
	opener, err := a.registry.Opener(backend)
	if err != nil {
		return err
	}

	if path := a.cfg.Camera.Record; path != "" {
		w, err := framelog.Create(path)
		if err != nil {
			return fmt.Errorf("create frame log: %w", err)
		}
		a.recorder = w
		opener = framelog.TeeOpener(opener, w, func(err error) {
			a.logger.Warn("frame not recorded", "path", path, "error", err)
		})
		a.logger.Info("recording frames", "path", path)
	}

	observer := flow.NewChangeObserver(func(port string) {
		a.logger.Debug("output changed", "port", port)
	})
	a.node = webcam.New(a.cfg.Camera.Node(), opener, webcam.WithObserver(observer))

	// The preview always consumes the output so the node has a destination,
	// with or without the web server.
	a.edge = flow.NewEdge[*video.Image]("preview", a.cfg.Camera.EdgeCapacity)
	a.node.Output.Connect(a.edge)
	if a.cfg.Web.Server.Enabled {
		a.hub = hub.New("camera", a.logger)
		a.preview = preview.New(a.edge, a.hub, a.cfg.Web.Preview, a.logger)
		a.web = web.NewServer(a.cfg.Web.Server, a.node, a.preview, a.hub, a.logger)
	} else {
		a.preview = preview.New(a.edge, nil, a.cfg.Web.Preview, a.logger)
	}

	a.scheduler = graph.New(a.node.Name(), a.node, a.cfg.Scheduler, a.logger)

	a.logger.Info("initialised",
		"backend", backend,
		"index", a.cfg.Camera.Index,
		"format", a.cfg.Camera.Format.String(),
		"web", a.cfg.Web.Server.Enabled,
	)
	return nil
}

// Run drives the node until ctx is done or the scheduler gives up. Images
// already queued for the preview are encoded before Run returns.
func (a *App) Run(ctx context.Context) error {
	if a.scheduler == nil {
		return errors.New("app: Run before Init")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Ends when the edge is closed and drained.
		if err := a.preview.Run(context.Background()); err != nil {
			a.logger.Error("preview stopped", "error", err)
		}
	}()

	if a.web != nil {
		a.web.StartAsync()
	}

	err := a.scheduler.Run(ctx)
	a.edge.Close()
	wg.Wait()
	return err
}

// Node returns the camera node.
func (a *App) Node() *webcam.Node {
	return a.node
}

// Preview returns the preview encoder.
func (a *App) Preview() *preview.Encoder {
	return a.preview
}

// Backend returns the resolved capture backend.
func (a *App) Backend() camera.Backend {
	return a.backend
}

// Shutdown stops the web server and flushes the frame log. It is safe to
// call Shutdown multiple times.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		if a.web != nil {
			if err := a.web.Shutdown(); err != nil {
				a.logger.Warn("web shutdown", "error", err)
			}
		}
		if a.node != nil {
			_ = a.node.Close()
		}
		if a.recorder != nil {
			if err := a.recorder.Close(); err != nil {
				a.logger.Warn("frame log close", "error", err)
			}
			a.logger.Info("frame log closed", "frames", a.recorder.Count())
		}
	})
}
