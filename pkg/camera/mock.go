package camera

import (
	"fmt"
	"image/color"
	"sync"
	"sync/atomic"
)

// Mock device capabilities.
const (
	MockMaxWidth      = 1920
	MockMaxHeight     = 1080
	MockMaxFrameRate  = 60
	mockFastWidth     = 640
	mockFastHeight    = 480
	mockFullFrameRate = 30
)

// MockDevice is a capture device for tests. It returns the same
// deterministic test pattern on every capture unless configured to fail.
type MockDevice struct {
	index  int
	format Format
	data   []byte
	seq    Sequencer

	mu           sync.Mutex
	closed       bool
	failures     int
	failErr      error
	failTemp     bool
	alwaysFail   bool
	captureCount atomic.Int64
}

// MockOption configures a MockDevice.
type MockOption func(*MockDevice)

// WithMockSize fixes the frame size regardless of the request.
func WithMockSize(width, height int) MockOption {
	return func(m *MockDevice) {
		m.format.Width = width
		m.format.Height = height
	}
}

// WithMockPixelFormat selects the raw layout the mock emits. Supported:
// rgb24, bgr24, gray8, yuyv. Other formats emit an rgb24-sized buffer tagged
// with the given format.
func WithMockPixelFormat(pf PixelFormat) MockOption {
	return func(m *MockDevice) {
		m.format.PixelFormat = pf
	}
}

// WithMockData makes every capture return a copy of data.
func WithMockData(data []byte) MockOption {
	return func(m *MockDevice) {
		m.data = append([]byte(nil), data...)
	}
}

// WithMockFailures makes the first n captures fail with err.
func WithMockFailures(n int, err error, temporary bool) MockOption {
	return func(m *MockDevice) {
		m.failures = n
		m.failErr = err
		m.failTemp = temporary
	}
}

// WithMockBroken makes every capture fail with a non-temporary error.
func WithMockBroken(err error) MockOption {
	return func(m *MockDevice) {
		m.alwaysFail = true
		m.failErr = err
	}
}

// NewMockDevice opens a mock device for req.
func NewMockDevice(index int, req Request, opts ...MockOption) (*MockDevice, error) {
	if err := req.Validate(); err != nil {
		return nil, NewDeviceError(UnsupportedFormat, string(BackendMock), index, err)
	}

	m := &MockDevice{
		index:  index,
		format: Format{PixelFormat: PixelRGB24},
	}
	switch req.Mode {
	case ModeHighestFrameRate:
		m.format.Width, m.format.Height, m.format.FrameRate = mockFastWidth, mockFastHeight, MockMaxFrameRate
	case ModeHighestResolution:
		m.format.Width, m.format.Height, m.format.FrameRate = MockMaxWidth, MockMaxHeight, mockFullFrameRate
	case ModeExact:
		if req.Width > MockMaxWidth || req.Height > MockMaxHeight || req.FrameRate > MockMaxFrameRate {
			return nil, NewDeviceError(UnsupportedFormat, string(BackendMock), index,
				fmt.Errorf("%s exceeds %dx%d@%d", req, MockMaxWidth, MockMaxHeight, MockMaxFrameRate))
		}
		m.format.Width, m.format.Height, m.format.FrameRate = req.Width, req.Height, float64(req.FrameRate)
	}

	for _, opt := range opts {
		opt(m)
	}
	if m.data == nil {
		m.data = TestPattern(m.format.Width, m.format.Height, m.format.PixelFormat)
	}
	return m, nil
}

// Capture returns a copy of the test pattern.
func (m *MockDevice) Capture() (RawFrame, error) {
	m.captureCount.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return RawFrame{}, &CaptureError{Backend: m.Name(), Index: m.index, Err: ErrClosed}
	}
	if m.alwaysFail {
		return RawFrame{}, &CaptureError{Backend: m.Name(), Index: m.index, Err: m.failErr}
	}
	if m.failures > 0 {
		m.failures--
		return RawFrame{}, &CaptureError{Backend: m.Name(), Index: m.index, Temporary: m.failTemp, Err: m.failErr}
	}

	f := RawFrame{
		Width:  m.format.Width,
		Height: m.format.Height,
		Format: m.format.PixelFormat,
		Data:   append([]byte(nil), m.data...),
	}
	m.seq.Stamp(&f)
	return f, nil
}

// Format returns the negotiated format.
func (m *MockDevice) Format() Format {
	return m.format
}

// Name returns "mock".
func (m *MockDevice) Name() string {
	return string(BackendMock)
}

// Close marks the device closed. It is safe to call Close multiple times.
func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Captures returns the number of Capture calls, including failed ones.
func (m *MockDevice) Captures() int64 {
	return m.captureCount.Load()
}

// Closed reports whether Close was called.
func (m *MockDevice) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Ensure MockDevice implements Device.
var _ Device = (*MockDevice)(nil)

// MockOpener opens MockDevices and records every device it handed out.
type MockOpener struct {
	// Indices lists the openable device indices. Empty means only index 0.
	Indices []int
	// Err, when set, is returned by every Open as a *DeviceError.
	Err error
	// Options are applied to every opened device.
	Options []MockOption

	mu      sync.Mutex
	opens   int
	devices []*MockDevice
}

// Open implements Opener.
func (o *MockOpener) Open(index int, req Request) (Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.opens++
	if o.Err != nil {
		return nil, AsDeviceError(o.Err, string(BackendMock), index)
	}
	if !o.available(index) {
		return nil, NewDeviceError(Unavailable, string(BackendMock), index, fmt.Errorf("no mock device at index %d", index))
	}

	dev, err := NewMockDevice(index, req, o.Options...)
	if err != nil {
		return nil, err
	}
	o.devices = append(o.devices, dev)
	return dev, nil
}

func (o *MockOpener) available(index int) bool {
	if len(o.Indices) == 0 {
		return index == 0
	}
	for _, i := range o.Indices {
		if i == index {
			return true
		}
	}
	return false
}

// Opens returns the number of Open calls.
func (o *MockOpener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

// Devices returns the devices opened so far.
func (o *MockOpener) Devices() []*MockDevice {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*MockDevice(nil), o.devices...)
}

// Last returns the most recently opened device, or nil.
func (o *MockOpener) Last() *MockDevice {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.devices) == 0 {
		return nil
	}
	return o.devices[len(o.devices)-1]
}

// TotalCaptures sums Captures over every opened device.
func (o *MockOpener) TotalCaptures() int64 {
	var n int64
	for _, d := range o.Devices() {
		n += d.Captures()
	}
	return n
}

// TestPattern renders eight vertical colour bars in the given layout.
func TestPattern(width, height int, pf PixelFormat) []byte {
	bars := [8][3]byte{
		{255, 255, 255}, {255, 255, 0}, {0, 255, 255}, {0, 255, 0},
		{255, 0, 255}, {255, 0, 0}, {0, 0, 255}, {0, 0, 0},
	}
	barAt := func(x int) [3]byte {
		return bars[x*len(bars)/width]
	}
	if width <= 0 || height <= 0 {
		return nil
	}

	switch pf {
	case PixelGray8:
		out := make([]byte, width*height)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				c := barAt(x)
				out[y*width+x] = byte((int(c[0])*299 + int(c[1])*587 + int(c[2])*114) / 1000)
			}
		}
		return out
	case PixelYUYV:
		out := make([]byte, width*height*2)
		for y := 0; y < height; y++ {
			for x := 0; x+1 < width; x += 2 {
				c := barAt(x)
				yy, cb, cr := color.RGBToYCbCr(c[0], c[1], c[2])
				i := (y*width + x) * 2
				out[i], out[i+1], out[i+2], out[i+3] = yy, cb, yy, cr
			}
		}
		return out
	default:
		out := make([]byte, width*height*3)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				c := barAt(x)
				i := (y*width + x) * 3
				if pf == PixelBGR24 {
					out[i], out[i+1], out[i+2] = c[2], c[1], c[0]
				} else {
					out[i], out[i+1], out[i+2] = c[0], c[1], c[2]
				}
			}
		}
		return out
	}
}
