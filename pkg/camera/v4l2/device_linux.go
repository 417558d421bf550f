//go:build linux

package v4l2

import (
	"fmt"
	"sync"

	"github.com/blackjack/webcam"

	"github.com/teslashibe/go-flowcam/pkg/camera"
)

// Open implements camera.Opener. It negotiates the best advertised mode for
// req and starts streaming.
func (o *Opener) Open(index int, req camera.Request) (camera.Device, error) {
	if err := req.Validate(); err != nil {
		return nil, camera.NewDeviceError(camera.UnsupportedFormat, backend, index, err)
	}
	if index < 0 {
		return nil, camera.NewDeviceError(camera.Unavailable, backend, index, fmt.Errorf("negative index"))
	}

	path := o.path(index)
	cam, err := webcam.Open(path)
	if err != nil {
		return nil, camera.NewDeviceError(openErrorKind(err), backend, index, fmt.Errorf("open %s: %w", path, err))
	}

	format, err := negotiate(cam, req)
	if err != nil {
		cam.Close()
		if kind := openErrorKind(err); kind == camera.Busy {
			return nil, camera.NewDeviceError(kind, backend, index, err)
		}
		return nil, camera.NewDeviceError(camera.UnsupportedFormat, backend, index, err)
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, camera.NewDeviceError(openErrorKind(err), backend, index, fmt.Errorf("start streaming: %w", err))
	}

	return &Device{
		index:   index,
		cam:     cam,
		format:  format,
		timeout: timeoutSeconds(o.timeout()),
	}, nil
}

func negotiate(cam *webcam.Webcam, req camera.Request) (camera.Format, error) {
	var modes []camera.Candidate
	for code := range cam.GetSupportedFormats() {
		pf, ok := pixelFormatOf(uint32(code))
		if !ok {
			continue
		}

		var sizes []sizeRange
		for _, fs := range cam.GetSupportedFrameSizes(code) {
			sizes = append(sizes, sizeRange{
				MinWidth: fs.MinWidth, MaxWidth: fs.MaxWidth, StepWidth: fs.StepWidth,
				MinHeight: fs.MinHeight, MaxHeight: fs.MaxHeight, StepHeight: fs.StepHeight,
			})
		}
		rates := func(w, h int) []intervalRange {
			var out []intervalRange
			for _, fr := range cam.GetSupportedFramerates(code, uint32(w), uint32(h)) {
				out = append(out, intervalRange{
					MinNumerator: fr.MinNumerator, MaxNumerator: fr.MaxNumerator,
					MinDenominator: fr.MinDenominator, MaxDenominator: fr.MaxDenominator,
				})
			}
			return out
		}
		modes = append(modes, candidates(pf, req, sizes, rates)...)
	}

	choice, err := camera.Choose(req, modes, preferred)
	if err != nil {
		return camera.Format{}, err
	}

	code, _ := fourccOf(choice.PixelFormat)
	gotCode, w, h, err := cam.SetImageFormat(webcam.PixelFormat(code), uint32(choice.Width), uint32(choice.Height))
	if err != nil {
		return camera.Format{}, fmt.Errorf("set format %s: %w", choice, err)
	}
	got, ok := pixelFormatOf(uint32(gotCode))
	if !ok {
		return camera.Format{}, fmt.Errorf("%w: driver switched to fourcc %#x", camera.ErrUnsupportedFormat, uint32(gotCode))
	}
	if req.Mode == camera.ModeExact && (int(w) != req.Width || int(h) != req.Height) {
		return camera.Format{}, fmt.Errorf("%w: driver negotiated %dx%d, requested %s", camera.ErrUnsupportedFormat, w, h, req)
	}
	if choice.FrameRate > 0 {
		// Not every driver supports S_PARM; the enumerated rate stands.
		_ = cam.SetFramerate(float32(choice.FrameRate))
	}

	return camera.Format{
		Width:       int(w),
		Height:      int(h),
		FrameRate:   choice.FrameRate,
		PixelFormat: got,
	}, nil
}

// Device is a streaming V4L2 device.
type Device struct {
	index   int
	format  camera.Format
	timeout uint32
	seq     camera.Sequencer

	mu     sync.Mutex
	cam    *webcam.Webcam
	closed bool
}

// Capture waits for the next frame and copies it out of the driver buffer.
func (d *Device) Capture() (camera.RawFrame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return camera.RawFrame{}, &camera.CaptureError{Backend: backend, Index: d.index, Err: camera.ErrClosed}
	}

	if err := d.cam.WaitForFrame(d.timeout); err != nil {
		if _, ok := err.(*webcam.Timeout); ok {
			return camera.RawFrame{}, &camera.CaptureError{Backend: backend, Index: d.index, Temporary: true, Err: ErrTimeout}
		}
		return camera.RawFrame{}, &camera.CaptureError{Backend: backend, Index: d.index, Err: err}
	}

	buf, err := d.cam.ReadFrame()
	if err != nil {
		return camera.RawFrame{}, &camera.CaptureError{Backend: backend, Index: d.index, Temporary: true, Err: err}
	}
	if len(buf) == 0 {
		return camera.RawFrame{}, &camera.CaptureError{Backend: backend, Index: d.index, Temporary: true, Err: camera.ErrEmptyFrame}
	}

	f := camera.RawFrame{
		Width:  d.format.Width,
		Height: d.format.Height,
		Format: d.format.PixelFormat,
		Data:   append([]byte(nil), buf...),
	}
	d.seq.Stamp(&f)
	return f, nil
}

// Format returns the negotiated format.
func (d *Device) Format() camera.Format {
	return d.format
}

// Name returns "v4l2".
func (d *Device) Name() string {
	return backend
}

// Close stops streaming and closes the device node. It is safe to call Close
// multiple times.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	_ = d.cam.StopStreaming()
	return d.cam.Close()
}

// Ensure the V4L2 types implement the camera interfaces.
var (
	_ camera.Opener = (*Opener)(nil)
	_ camera.Device = (*Device)(nil)
)
