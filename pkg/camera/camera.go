// Package camera defines the capture device contract used by flowcam nodes:
// a Device is an exclusively owned, open connection to one camera whose only
// operation of interest is capturing a single raw frame.
//
// Backends:
//   - opencv (pkg/camera/opencv) - any camera OpenCV can open
//   - v4l2 (pkg/camera/v4l2) - Linux Video4Linux2 devices
//   - replay (pkg/framelog) - recorded frame logs
//   - mock - deterministic test patterns without hardware
package camera

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// PixelFormat tags the byte layout of a RawFrame.
type PixelFormat string

const (
	// PixelRGB24 is packed 8-bit R, G, B.
	PixelRGB24 PixelFormat = "rgb24"
	// PixelBGR24 is packed 8-bit B, G, R (OpenCV's default).
	PixelBGR24 PixelFormat = "bgr24"
	// PixelBGRA32 is packed 8-bit B, G, R, A.
	PixelBGRA32 PixelFormat = "bgra32"
	// PixelGray8 is one 8-bit luma sample per pixel.
	PixelGray8 PixelFormat = "gray8"
	// PixelYUYV is packed 4:2:2 Y0 U Y1 V.
	PixelYUYV PixelFormat = "yuyv"
	// PixelNV12 is a full Y plane followed by interleaved 2x2 subsampled UV.
	PixelNV12 PixelFormat = "nv12"
	// PixelMJPEG is one JPEG image per frame.
	PixelMJPEG PixelFormat = "mjpeg"
)

// RawFrame is one device-native frame. It is produced and consumed within a
// single capture cycle. Data never aliases driver memory.
type RawFrame struct {
	// Seq is the per-device monotonic sequence number.
	Seq uint64
	// Timestamp is when the frame was captured.
	Timestamp time.Time
	// TraceID identifies the frame across pipeline stages.
	TraceID string

	Width  int
	Height int
	// Stride is the length of one row in bytes, 0 if rows are tightly packed.
	Stride int

	Format PixelFormat
	Data   []byte
}

// Format is what an open device actually delivers.
type Format struct {
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	FrameRate   float64     `json:"frame_rate"`
	PixelFormat PixelFormat `json:"pixel_format"`
}

// Device is an open, exclusively owned capture device. Implementations are
// not safe for concurrent use; the owner serialises calls.
type Device interface {
	// Capture blocks until the device delivers one frame or fails.
	// Errors are *CaptureError.
	Capture() (RawFrame, error)

	// Format returns the negotiated capture format.
	Format() Format

	// Name returns the backend name (e.g., "opencv", "v4l2", "mock").
	Name() string

	io.Closer
}

// Opener opens the device at index with the requested format.
// Errors are *DeviceError.
type Opener interface {
	Open(index int, req Request) (Device, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(index int, req Request) (Device, error)

// Open calls f.
func (f OpenerFunc) Open(index int, req Request) (Device, error) {
	return f(index, req)
}

// Sequencer stamps frames with sequence numbers, timestamps and trace IDs.
// Backends embed one per open device.
type Sequencer struct {
	seq atomic.Uint64
}

// Stamp fills the bookkeeping fields of f.
func (s *Sequencer) Stamp(f *RawFrame) {
	f.Seq = s.seq.Add(1)
	f.Timestamp = time.Now()
	f.TraceID = uuid.NewString()
}

// Count returns the number of frames stamped so far.
func (s *Sequencer) Count() uint64 {
	return s.seq.Load()
}
