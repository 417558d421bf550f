//go:build !linux

package v4l2

import (
	"fmt"

	"github.com/teslashibe/go-flowcam/pkg/camera"
)

// Open returns an Unavailable error on non-Linux platforms.
func (o *Opener) Open(index int, req camera.Request) (camera.Device, error) {
	return nil, camera.NewDeviceError(camera.Unavailable, backend, index,
		fmt.Errorf("V4L2 is only available on Linux"))
}

// Ensure Opener implements camera.Opener.
var _ camera.Opener = (*Opener)(nil)
