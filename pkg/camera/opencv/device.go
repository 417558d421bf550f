// Package opencv captures frames through OpenCV's VideoCapture. It needs the
// OpenCV libraries at build time; hosts that cannot link them use the v4l2 or
// mock backends instead.
package opencv

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-flowcam/pkg/camera"
)

const backend = string(camera.BackendOpenCV)

// maxFrameRate is asked of the driver in highest-framerate mode. Drivers clamp
// it to what the current size supports.
const maxFrameRate = 1000

// Opener opens OpenCV capture devices by index.
type Opener struct{}

// NewOpener returns an OpenCV opener.
func NewOpener() *Opener {
	return &Opener{}
}

// Open implements camera.Opener.
func (o *Opener) Open(index int, req camera.Request) (camera.Device, error) {
	if err := req.Validate(); err != nil {
		return nil, camera.NewDeviceError(camera.UnsupportedFormat, backend, index, err)
	}

	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, camera.NewDeviceError(camera.Unavailable, backend, index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, camera.NewDeviceError(camera.Unavailable, backend, index,
			fmt.Errorf("device %d did not open", index))
	}

	format, err := configure(vc, req)
	if err != nil {
		vc.Close()
		return nil, camera.NewDeviceError(camera.UnsupportedFormat, backend, index, err)
	}

	return &Device{
		index:  index,
		vc:     vc,
		mat:    gocv.NewMat(),
		format: format,
	}, nil
}

// configure applies req to vc and reads back what the driver accepted.
func configure(vc *gocv.VideoCapture, req camera.Request) (camera.Format, error) {
	switch req.Mode {
	case camera.ModeHighestFrameRate:
		vc.Set(gocv.VideoCaptureFrameWidth, float64(camera.LegacyRequest().Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(camera.LegacyRequest().Height))
		vc.Set(gocv.VideoCaptureFPS, maxFrameRate)
	case camera.ModeHighestResolution:
		vc.Set(gocv.VideoCaptureFrameWidth, camera.MaxDimension)
		vc.Set(gocv.VideoCaptureFrameHeight, camera.MaxDimension)
	case camera.ModeExact:
		vc.Set(gocv.VideoCaptureFrameWidth, float64(req.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(req.Height))
		vc.Set(gocv.VideoCaptureFPS, float64(req.FrameRate))
	}

	f := camera.Format{
		Width:       int(vc.Get(gocv.VideoCaptureFrameWidth)),
		Height:      int(vc.Get(gocv.VideoCaptureFrameHeight)),
		FrameRate:   vc.Get(gocv.VideoCaptureFPS),
		PixelFormat: camera.PixelBGR24,
	}
	if req.Mode == camera.ModeExact {
		if f.Width != req.Width || f.Height != req.Height {
			return f, fmt.Errorf("driver negotiated %dx%d, requested %s", f.Width, f.Height, req)
		}
		// Some drivers report 0 fps; only a reported mismatch is fatal.
		if f.FrameRate > 0 && math.Abs(f.FrameRate-float64(req.FrameRate)) > 0.5 {
			return f, fmt.Errorf("driver negotiated %g fps, requested %s", f.FrameRate, req)
		}
	}
	return f, nil
}

// Device is an open OpenCV capture device.
type Device struct {
	index  int
	format camera.Format
	seq    camera.Sequencer

	mu     sync.Mutex
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

// Capture reads one frame. The returned data is copied out of the Mat.
func (d *Device) Capture() (camera.RawFrame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return camera.RawFrame{}, &camera.CaptureError{Backend: backend, Index: d.index, Err: camera.ErrClosed}
	}
	if ok := d.vc.Read(&d.mat); !ok {
		return camera.RawFrame{}, &camera.CaptureError{Backend: backend, Index: d.index, Temporary: true,
			Err: errors.New("read failed")}
	}
	if d.mat.Empty() {
		return camera.RawFrame{}, &camera.CaptureError{Backend: backend, Index: d.index, Temporary: true,
			Err: camera.ErrEmptyFrame}
	}

	pf, err := pixelFormat(d.mat.Type())
	if err != nil {
		return camera.RawFrame{}, &camera.CaptureError{Backend: backend, Index: d.index, Err: err}
	}

	f := camera.RawFrame{
		Width:  d.mat.Cols(),
		Height: d.mat.Rows(),
		Format: pf,
		Data:   d.mat.ToBytes(),
	}
	d.seq.Stamp(&f)
	return f, nil
}

func pixelFormat(t gocv.MatType) (camera.PixelFormat, error) {
	switch t {
	case gocv.MatTypeCV8UC3:
		return camera.PixelBGR24, nil
	case gocv.MatTypeCV8UC4:
		return camera.PixelBGRA32, nil
	case gocv.MatTypeCV8UC1:
		return camera.PixelGray8, nil
	default:
		return "", fmt.Errorf("%w: mat type %d", camera.ErrUnsupportedFormat, t)
	}
}

// Format returns the format read back from the driver at open time.
func (d *Device) Format() camera.Format {
	return d.format
}

// Name returns "opencv".
func (d *Device) Name() string {
	return backend
}

// Close releases the capture handle. It is safe to call Close multiple times.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.mat.Close()
	return d.vc.Close()
}

// Ensure the OpenCV types implement the camera interfaces.
var (
	_ camera.Opener = (*Opener)(nil)
	_ camera.Device = (*Device)(nil)
)
