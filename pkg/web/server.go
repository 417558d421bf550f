// Package web serves the camera node's status and a live JPEG preview over
// HTTP and websockets.
package web

import (
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-flowcam/pkg/hub"
	"github.com/teslashibe/go-flowcam/pkg/preview"
	"github.com/teslashibe/go-flowcam/pkg/webcam"
)

// DefaultPort is the listen port used when Config.Port is empty.
const DefaultPort = "8181"

// Config holds web server settings.
type Config struct {
	// Enabled turns the preview server on.
	Enabled bool `yaml:"enabled"`

	// Port to listen on. Default: 8181.
	Port string `yaml:"port"`
}

// NodeStats reports the camera node's counters.
type NodeStats interface {
	Stats() webcam.Stats
}

// Previewer exposes the latest encoded preview frame.
type Previewer interface {
	Latest() (preview.Frame, bool)
	Stats() preview.Stats
}

// Server is the preview web server
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	node      NodeStats
	preview   Previewer
	cameraHub *hub.Hub
}

// NewServer creates a new preview server. The hub carries the frames
// broadcast to /ws/camera clients; the server runs it while serving.
// preview may be nil. A nil logger uses slog.Default().
func NewServer(cfg Config, node NodeStats, pv Previewer, cameraHub *hub.Hub, logger *slog.Logger) *Server {
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		port:      cfg.Port,
		logger:    logger.With("component", "web"),
		node:      node,
		preview:   pv,
		cameraHub: cameraHub,
	}

	app := fiber.New(fiber.Config{
		AppName:               "flowcam",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/snapshot", s.handleSnapshot)
	api.Get("/presets", s.handlePresets)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// Start starts the hub and blocks serving on the configured port.
func (s *Server) Start() error {
	s.logger.Info("preview server listening", "url", "http://localhost:"+s.port)
	go s.cameraHub.Run()
	return s.app.Listen(":" + s.port)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server error", "error", err)
		}
	}()
}

// Serve starts the hub and blocks serving on ln.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("preview server listening", "addr", ln.Addr().String())
	go s.cameraHub.Run()
	return s.app.Listener(ln)
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Shutdown gracefully stops the web server and its hub.
func (s *Server) Shutdown() error {
	s.cameraHub.Stop()
	return s.app.Shutdown()
}
