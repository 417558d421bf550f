package web

import (
	"sort"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-flowcam/pkg/camera"
	"github.com/teslashibe/go-flowcam/pkg/hub"
	"github.com/teslashibe/go-flowcam/pkg/preview"
	"github.com/teslashibe/go-flowcam/pkg/webcam"
)

// Status is the /api/status response.
type Status struct {
	Node    webcam.Stats   `json:"node"`
	Preview *preview.Stats `json:"preview,omitempty"`
	Hub     hub.Stats      `json:"hub"`
}

// PresetInfo describes a named capture request.
type PresetInfo struct {
	Name    string         `json:"name"`
	Request camera.Request `json:"request"`
}

// handleStatus returns node, preview and hub counters
func (s *Server) handleStatus(c *fiber.Ctx) error {
	st := Status{
		Node: s.node.Stats(),
		Hub:  s.cameraHub.Stats(),
	}
	if s.preview != nil {
		ps := s.preview.Stats()
		st.Preview = &ps
	}
	return c.JSON(st)
}

// handleSnapshot returns the latest preview frame as a JPEG
func (s *Server) handleSnapshot(c *fiber.Ctx) error {
	if s.preview == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "preview disabled",
		})
	}
	f, ok := s.preview.Latest()
	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "no frame yet",
		})
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set("X-Frame-Seq", strconv.FormatUint(f.Seq, 10))
	c.Set("X-Trace-Id", f.TraceID)
	return c.Send(f.JPEG)
}

// handlePresets lists the named capture requests
func (s *Server) handlePresets(c *fiber.Ctx) error {
	presets := camera.Presets()
	out := make([]PresetInfo, 0, len(presets))
	for name, req := range presets {
		out = append(out, PresetInfo{Name: name, Request: req})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return c.JSON(out)
}

// handleCameraWS streams preview frames to one websocket client
func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}
