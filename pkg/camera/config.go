package camera

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode selects how a device picks its capture format.
type Mode string

const (
	// ModeHighestFrameRate picks the fastest format the device offers.
	ModeHighestFrameRate Mode = "highest-framerate"
	// ModeHighestResolution picks the largest format the device offers.
	ModeHighestResolution Mode = "highest-resolution"
	// ModeExact requires exactly Width x Height at FrameRate.
	ModeExact Mode = "exact"
)

// MaxDimension bounds exact requests.
const MaxDimension = 16384

// Request is the capture format asked of a device at open time.
type Request struct {
	Mode Mode `yaml:"mode" json:"mode"`

	// Width, Height and FrameRate are only used by ModeExact.
	Width     int `yaml:"width,omitempty" json:"width,omitempty"`
	Height    int `yaml:"height,omitempty" json:"height,omitempty"`
	FrameRate int `yaml:"frame_rate,omitempty" json:"frame_rate,omitempty"`
}

// HighestFrameRate returns a ModeHighestFrameRate request.
func HighestFrameRate() Request {
	return Request{Mode: ModeHighestFrameRate}
}

// HighestResolution returns a ModeHighestResolution request.
func HighestResolution() Request {
	return Request{Mode: ModeHighestResolution}
}

// Exact returns a ModeExact request.
func Exact(width, height, frameRate int) Request {
	return Request{Mode: ModeExact, Width: width, Height: height, FrameRate: frameRate}
}

// Validate checks that the request is well formed. It does not know what a
// particular device supports; that surfaces as ErrUnsupportedFormat at open.
func (r Request) Validate() error {
	switch r.Mode {
	case ModeHighestFrameRate, ModeHighestResolution:
		return nil
	case ModeExact:
		if r.Width <= 0 || r.Width > MaxDimension {
			return fmt.Errorf("width must be between 1 and %d, got %d", MaxDimension, r.Width)
		}
		if r.Height <= 0 || r.Height > MaxDimension {
			return fmt.Errorf("height must be between 1 and %d, got %d", MaxDimension, r.Height)
		}
		if r.FrameRate <= 0 || r.FrameRate > 1000 {
			return fmt.Errorf("frame_rate must be between 1 and 1000, got %d", r.FrameRate)
		}
		return nil
	case "":
		return fmt.Errorf("capture mode required")
	default:
		return fmt.Errorf("unknown capture mode %q", r.Mode)
	}
}

// String renders the request in the form accepted by ParseRequest.
func (r Request) String() string {
	if r.Mode == ModeExact {
		return fmt.Sprintf("%dx%d@%d", r.Width, r.Height, r.FrameRate)
	}
	return string(r.Mode)
}

// ParseRequest parses "highest-framerate", "highest-resolution", a preset
// name (see PresetNames) or an exact "WIDTHxHEIGHT@FPS" triple.
func ParseRequest(s string) (Request, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch Mode(s) {
	case ModeHighestFrameRate, ModeHighestResolution:
		return Request{Mode: Mode(s)}, nil
	}
	if preset := GetPreset(s); preset != nil {
		return *preset, nil
	}

	size, rate, ok := strings.Cut(s, "@")
	if !ok {
		return Request{}, fmt.Errorf("invalid capture format %q: want WIDTHxHEIGHT@FPS", s)
	}
	w, h, ok := strings.Cut(size, "x")
	if !ok {
		return Request{}, fmt.Errorf("invalid capture size %q", size)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Request{}, fmt.Errorf("invalid width %q: %w", w, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Request{}, fmt.Errorf("invalid height %q: %w", h, err)
	}
	fps, err := strconv.Atoi(rate)
	if err != nil {
		return Request{}, fmt.Errorf("invalid frame rate %q: %w", rate, err)
	}

	req := Exact(width, height, fps)
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// UnmarshalText lets a Request be written as a single string in YAML or
// flags.
func (r *Request) UnmarshalText(text []byte) error {
	req, err := ParseRequest(string(text))
	if err != nil {
		return err
	}
	*r = req
	return nil
}

// MarshalText is the inverse of UnmarshalText.
func (r Request) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
