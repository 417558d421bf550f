// Package webcam implements a dataflow source node that captures frames from
// a camera, decodes them and pushes the images on its output port.
//
// The node is a three-state machine:
//
//	Uninitialized --Probe ok--> Ready --Update--> Ready
//	Uninitialized --test capture fails--> Failed
//	any --Reset--> Uninitialized, any --Close--> Failed
//
// Probe opens the device and performs one test capture before declaring the
// node usable. Update captures, decodes and sends exactly one image per
// successful cycle. The node logs nothing; every failure is returned to the
// host as a *flow.ReadyError or *flow.UpdateError.
package webcam

import (
	"github.com/teslashibe/go-flowcam/pkg/camera"
)

// DefaultOutputName is the output port name used when Config.Output is empty.
const DefaultOutputName = "image"

// Config selects the device a node opens.
type Config struct {
	// Name identifies the node in errors. Default: "webcam".
	Name string `yaml:"name" json:"name"`

	// Index is the device index passed to the opener.
	Index int `yaml:"index" json:"index"`

	// Request is the capture format asked of the device.
	Request camera.Request `yaml:"format" json:"format"`

	// Output names the output port. Default: "image".
	Output string `yaml:"output" json:"output"`
}

// DefaultConfig opens device 0 at its highest frame rate.
func DefaultConfig() Config {
	return Config{
		Name:    "webcam",
		Index:   0,
		Request: camera.HighestFrameRate(),
		Output:  DefaultOutputName,
	}
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "webcam"
	}
	if c.Output == "" {
		c.Output = DefaultOutputName
	}
	if c.Request.Mode == "" {
		c.Request = camera.HighestFrameRate()
	}
	return c
}
