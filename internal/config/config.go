// Package config loads flowcam settings from defaults, an optional YAML file
// and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-flowcam/internal/log"
	"github.com/teslashibe/go-flowcam/pkg/camera"
	"github.com/teslashibe/go-flowcam/pkg/flow"
	"github.com/teslashibe/go-flowcam/pkg/graph"
	"github.com/teslashibe/go-flowcam/pkg/preview"
	"github.com/teslashibe/go-flowcam/pkg/web"
	"github.com/teslashibe/go-flowcam/pkg/webcam"
)

// Environment variables that override file settings.
const (
	EnvBackend     = "FLOWCAM_BACKEND"
	EnvDeviceIndex = "FLOWCAM_DEVICE_INDEX"
	EnvFormat      = "FLOWCAM_FORMAT"
	EnvRecord      = "FLOWCAM_RECORD"
	EnvWebPort     = "WEB_PORT"
	EnvLogLevel    = "LOG_LEVEL"
)

// Config is the complete flowcam configuration.
type Config struct {
	Camera    CameraConfig `yaml:"camera"`
	Scheduler graph.Config `yaml:"scheduler"`
	Web       WebConfig    `yaml:"web"`
	LogLevel  string       `yaml:"log_level"`
}

// CameraConfig selects the backend and device.
type CameraConfig struct {
	Backend camera.Backend `yaml:"backend"`
	Name    string         `yaml:"name"`
	Index   int            `yaml:"index"`
	Format  camera.Request `yaml:"format"`

	// Replay lists frame logs for the replay backend; index i plays Replay[i].
	Replay []string `yaml:"replay"`
	// Loop restarts replayed logs at their end.
	Loop bool `yaml:"loop"`

	// Record, when set, writes every captured frame to this log file.
	Record string `yaml:"record"`

	// Timeout bounds each V4L2 capture.
	Timeout time.Duration `yaml:"timeout"`

	// EdgeCapacity is the queue depth between the node and the preview.
	EdgeCapacity int `yaml:"edge_capacity"`
}

// WebConfig configures the preview server and its encoder.
type WebConfig struct {
	Server  web.Config     `yaml:",inline"`
	Preview preview.Config `yaml:",inline"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Camera: CameraConfig{
			Backend:      camera.BackendAuto,
			Name:         "webcam",
			Index:        0,
			Format:       camera.HighestFrameRate(),
			Timeout:      5 * time.Second,
			EdgeCapacity: flow.DefaultEdgeCapacity,
		},
		Scheduler: graph.DefaultConfig(),
		Web: WebConfig{
			Server:  web.Config{Enabled: false, Port: web.DefaultPort},
			Preview: preview.Config{Quality: preview.DefaultQuality},
		},
		LogLevel: "info",
	}
}

// Load builds a configuration with Read and validates it.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Read builds a configuration from defaults, the YAML file at path (skipped
// when path is empty) and the environment without validating it, so callers
// can apply further overrides first.
func Read(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.ApplyEnv()
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() error {
	var errs []error
	if v := os.Getenv(EnvBackend); v != "" {
		c.Camera.Backend = camera.Backend(v)
	}
	if v := os.Getenv(EnvDeviceIndex); v != "" {
		idx, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvDeviceIndex, err))
		} else {
			c.Camera.Index = idx
		}
	}
	if v := os.Getenv(EnvFormat); v != "" {
		req, err := camera.ParseRequest(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvFormat, err))
		} else {
			c.Camera.Format = req
		}
	}
	if v := os.Getenv(EnvRecord); v != "" {
		c.Camera.Record = v
	}
	if v := os.Getenv(EnvWebPort); v != "" {
		c.Web.Server.Port = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	return errors.Join(errs...)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Camera.Backend {
	case camera.BackendAuto, camera.BackendOpenCV, camera.BackendV4L2, camera.BackendMock:
	case camera.BackendReplay:
		if len(c.Camera.Replay) == 0 {
			errs = append(errs, errors.New("camera.replay: replay backend needs at least one log"))
		}
	default:
		errs = append(errs, fmt.Errorf("camera.backend: %w: %q", camera.ErrUnknownBackend, c.Camera.Backend))
	}
	if c.Camera.Index < 0 {
		errs = append(errs, fmt.Errorf("camera.index: must be >= 0, got %d", c.Camera.Index))
	}
	if err := c.Camera.Format.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("camera.format: %w", err))
	}
	if c.Camera.Timeout < 0 {
		errs = append(errs, fmt.Errorf("camera.timeout: must not be negative"))
	}
	if c.Camera.EdgeCapacity < 0 {
		errs = append(errs, fmt.Errorf("camera.edge_capacity: must not be negative"))
	}
	if c.Scheduler.Interval <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.interval: must be positive, got %s", c.Scheduler.Interval))
	}
	if c.Scheduler.MaxConsecutiveFailures < 0 {
		errs = append(errs, fmt.Errorf("scheduler.max_consecutive_failures: must not be negative"))
	}
	if c.Web.Preview.Quality < 0 || c.Web.Preview.Quality > 100 {
		errs = append(errs, fmt.Errorf("web.quality: must be between 0 and 100, got %d", c.Web.Preview.Quality))
	}
	if c.Web.Server.Enabled {
		if p, err := strconv.Atoi(c.Web.Server.Port); err != nil || p < 0 || p > 65535 {
			errs = append(errs, fmt.Errorf("web.port: invalid port %q", c.Web.Server.Port))
		}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// Node returns the webcam node configuration.
func (c CameraConfig) Node() webcam.Config {
	return webcam.Config{
		Name:    c.Name,
		Index:   c.Index,
		Request: c.Format,
	}
}
