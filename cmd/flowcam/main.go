// flowcam runs a webcam source node with an optional live preview server.
//
// Usage:
//
//	flowcam -backend v4l2 -device 0 -format 1280x720@30 -web
//	flowcam -backend replay -config replay.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-flowcam/internal/app"
	"github.com/teslashibe/go-flowcam/internal/config"
	"github.com/teslashibe/go-flowcam/internal/log"
	"github.com/teslashibe/go-flowcam/pkg/camera"
)

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(2)
	}

	log.Init(cfg.LogLevel)
	logger := log.With("app", "flowcam")

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(2)
	}
	if err := a.Init(); err != nil {
		logger.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer a.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("runtime error", "error", err)
		a.Shutdown()
		os.Exit(1)
	}
}

// parseFlags loads the config file and environment, then applies flags
// that were set explicitly.
func parseFlags() (config.Config, error) {
	configPath := flag.String("config", "", "Path to a YAML config file")
	backend := flag.String("backend", "", "Capture backend: auto, v4l2, opencv, replay, mock")
	device := flag.Int("device", 0, "Camera device index")
	format := flag.String("format", "", "Capture format: highest-framerate, highest-resolution, a preset, or WxH@FPS")
	record := flag.String("record", "", "Record captured frames to this log file")
	webEnabled := flag.Bool("web", false, "Serve the live preview")
	port := flag.String("port", "", "Preview server port (overrides WEB_PORT env var)")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := config.Read(*configPath)
	if err != nil {
		return cfg, err
	}

	if *backend != "" {
		cfg.Camera.Backend = camera.Backend(*backend)
	}
	if set["device"] {
		cfg.Camera.Index = *device
	}
	if *format != "" {
		req, err := camera.ParseRequest(*format)
		if err != nil {
			return cfg, fmt.Errorf("-format: %w", err)
		}
		cfg.Camera.Format = req
	}
	if *record != "" {
		cfg.Camera.Record = *record
	}
	if set["web"] {
		cfg.Web.Server.Enabled = *webEnabled
	}
	if *port != "" {
		cfg.Web.Server.Port = *port
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}
