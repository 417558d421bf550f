package framelog

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"sync"

	"github.com/teslashibe/go-flowcam/pkg/camera"
)

const replayBackend = string(camera.BackendReplay)

// Driver opens frame logs as capture devices. Device index i plays
// Paths[i].
type Driver struct {
	Paths []string

	// Loop restarts playback at the end of the log instead of failing.
	Loop bool
}

// Open implements camera.Opener. Exact requests must match the recorded
// frame size. An empty log opens successfully and fails its first capture.
func (d *Driver) Open(index int, req camera.Request) (camera.Device, error) {
	if err := req.Validate(); err != nil {
		return nil, camera.NewDeviceError(camera.UnsupportedFormat, replayBackend, index, err)
	}
	if index < 0 || index >= len(d.Paths) {
		return nil, camera.NewDeviceError(camera.Unavailable, replayBackend, index,
			fmt.Errorf("no log for index %d", index))
	}

	path := d.Paths[index]
	f, err := os.Open(path)
	if err != nil {
		kind := camera.Unavailable
		if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrPermission) {
			kind = camera.Busy
		}
		return nil, camera.NewDeviceError(kind, replayBackend, index, err)
	}

	dev := &ReplayDevice{index: index, path: path, loop: d.Loop, file: f}
	if err := dev.rewind(); err != nil {
		_ = f.Close()
		return nil, camera.NewDeviceError(camera.Unavailable, replayBackend, index, err)
	}
	if err := dev.prime(); err != nil {
		_ = f.Close()
		return nil, camera.NewDeviceError(camera.Unavailable, replayBackend, index, err)
	}

	if req.Mode == camera.ModeExact && !dev.empty {
		if dev.format.Width != req.Width || dev.format.Height != req.Height {
			_ = f.Close()
			return nil, camera.NewDeviceError(camera.UnsupportedFormat, replayBackend, index,
				fmt.Errorf("%s records %dx%d, requested %s", path, dev.format.Width, dev.format.Height, req))
		}
	}
	return dev, nil
}

// ReplayDevice plays back one frame log.
type ReplayDevice struct {
	index int
	path  string
	loop  bool
	seq   camera.Sequencer

	mu     sync.Mutex
	file   *os.File
	r      *Reader
	empty  bool
	format camera.Format
	played uint64
	closed bool
}

func (d *ReplayDevice) rewind() error {
	if _, err := d.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r, err := NewReader(d.file)
	if err != nil {
		return err
	}
	d.r = r
	return nil
}

// prime reads the first two frames to learn the format and frame rate.
func (d *ReplayDevice) prime() error {
	first, err := d.r.Next()
	if errors.Is(err, io.EOF) {
		d.empty = true
		return d.rewind()
	}
	if err != nil {
		return err
	}
	d.format = camera.Format{Width: first.Width, Height: first.Height, PixelFormat: first.Format}

	second, err := d.r.Next()
	if err == nil {
		if dt := second.Timestamp.Sub(first.Timestamp).Seconds(); dt > 0 {
			d.format.FrameRate = math.Round(1/dt*100) / 100
		}
	}
	return d.rewind()
}

// Capture returns the next recorded frame, restamped with a fresh sequence
// number and trace ID.
func (d *ReplayDevice) Capture() (camera.RawFrame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return camera.RawFrame{}, &camera.CaptureError{Backend: replayBackend, Index: d.index, Err: camera.ErrClosed}
	}

	f, err := d.r.Next()
	if errors.Is(err, io.EOF) && d.loop && d.played > 0 {
		if err = d.rewind(); err == nil {
			f, err = d.r.Next()
		}
	}
	if err != nil {
		return camera.RawFrame{}, &camera.CaptureError{Backend: replayBackend, Index: d.index, Err: err}
	}

	d.played++
	d.seq.Stamp(&f)
	return f, nil
}

// Played returns the number of frames delivered.
func (d *ReplayDevice) Played() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.played
}

// Format returns the format of the first recorded frame.
func (d *ReplayDevice) Format() camera.Format {
	return d.format
}

// Name returns "replay".
func (d *ReplayDevice) Name() string {
	return replayBackend
}

// Close closes the log file. It is safe to call Close multiple times.
func (d *ReplayDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.file.Close()
}

// Ensure the replay types implement the camera interfaces.
var (
	_ camera.Opener = (*Driver)(nil)
	_ camera.Device = (*ReplayDevice)(nil)
)
