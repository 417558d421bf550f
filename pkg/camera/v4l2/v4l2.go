// Package v4l2 captures frames from Linux Video4Linux2 devices through
// github.com/blackjack/webcam. On other platforms Open always reports the
// device as unavailable.
package v4l2

import (
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/teslashibe/go-flowcam/pkg/camera"
)

const backend = string(camera.BackendV4L2)

// DefaultTimeout bounds how long Capture waits for the driver.
const DefaultTimeout = 5 * time.Second

// ErrTimeout is returned (as a temporary capture error) when the driver
// delivers no frame within the timeout.
var ErrTimeout = errors.New("v4l2: frame timeout")

// V4L2 FourCC codes for the layouts the decoder understands.
const (
	fourccYUYV uint32 = 0x56595559 // 'YUYV'
	fourccMJPG uint32 = 0x47504A4D // 'MJPG'
	fourccNV12 uint32 = 0x3231564E // 'NV12'
	fourccGREY uint32 = 0x59455247 // 'GREY'
	fourccRGB3 uint32 = 0x33424752 // 'RGB3'
	fourccBGR3 uint32 = 0x33524742 // 'BGR3'
)

var fourccs = map[uint32]camera.PixelFormat{
	fourccYUYV: camera.PixelYUYV,
	fourccMJPG: camera.PixelMJPEG,
	fourccNV12: camera.PixelNV12,
	fourccGREY: camera.PixelGray8,
	fourccRGB3: camera.PixelRGB24,
	fourccBGR3: camera.PixelBGR24,
}

// preferred ranks formats: uncompressed first, MJPEG last.
var preferred = []camera.PixelFormat{
	camera.PixelYUYV,
	camera.PixelNV12,
	camera.PixelRGB24,
	camera.PixelBGR24,
	camera.PixelGray8,
	camera.PixelMJPEG,
}

func pixelFormatOf(fourcc uint32) (camera.PixelFormat, bool) {
	pf, ok := fourccs[fourcc]
	return pf, ok
}

func fourccOf(pf camera.PixelFormat) (uint32, bool) {
	for code, p := range fourccs {
		if p == pf {
			return code, true
		}
	}
	return 0, false
}

// Opener opens /dev/videoN devices.
type Opener struct {
	// Path maps a device index to a device node. Default: /dev/video<index>.
	Path func(index int) string

	// Timeout bounds each Capture. Default: DefaultTimeout.
	Timeout time.Duration
}

// NewOpener returns an opener with default settings.
func NewOpener() *Opener {
	return &Opener{}
}

func (o *Opener) path(index int) string {
	if o.Path != nil {
		return o.Path(index)
	}
	return fmt.Sprintf("/dev/video%d", index)
}

func (o *Opener) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultTimeout
}

// timeoutSeconds converts d for WaitForFrame, which takes whole seconds.
func timeoutSeconds(d time.Duration) uint32 {
	s := uint32((d + time.Second - 1) / time.Second)
	if s == 0 {
		s = 1
	}
	return s
}

// openErrorKind classifies a failure to open or configure a device node.
func openErrorKind(err error) camera.DeviceErrorKind {
	if errors.Is(err, syscall.EBUSY) {
		return camera.Busy
	}
	return camera.Unavailable
}

// sizeRange mirrors a V4L2 frame size enumeration entry. Discrete sizes have
// Min equal to Max.
type sizeRange struct {
	MinWidth, MaxWidth, StepWidth    uint32
	MinHeight, MaxHeight, StepHeight uint32
}

// sizes lists the concrete sizes worth considering for req.
func (r sizeRange) sizes(req camera.Request) [][2]int {
	if r.MinWidth == r.MaxWidth && r.MinHeight == r.MaxHeight {
		return [][2]int{{int(r.MaxWidth), int(r.MaxHeight)}}
	}
	out := [][2]int{
		{int(r.MinWidth), int(r.MinHeight)},
		{int(r.MaxWidth), int(r.MaxHeight)},
	}
	if req.Mode == camera.ModeExact && r.contains(req.Width, req.Height) {
		out = append(out, [2]int{req.Width, req.Height})
	}
	return out
}

func (r sizeRange) contains(w, h int) bool {
	fits := func(v int, min, max, step uint32) bool {
		if v < int(min) || v > int(max) {
			return false
		}
		return step == 0 || (v-int(min))%int(step) == 0
	}
	return fits(w, r.MinWidth, r.MaxWidth, r.StepWidth) && fits(h, r.MinHeight, r.MaxHeight, r.StepHeight)
}

// intervalRange mirrors a V4L2 frame interval enumeration entry. Intervals
// are in seconds per frame, so the fastest rate is MaxDenominator/MinNumerator.
type intervalRange struct {
	MinNumerator, MaxNumerator     uint32
	MinDenominator, MaxDenominator uint32
}

func (r intervalRange) rates() []float64 {
	rate := func(num, den uint32) float64 {
		if num == 0 {
			return 0
		}
		return float64(den) / float64(num)
	}
	fastest := rate(r.MinNumerator, r.MaxDenominator)
	slowest := rate(r.MaxNumerator, r.MinDenominator)
	if fastest == slowest {
		return []float64{fastest}
	}
	return []float64{fastest, slowest}
}

// candidates expands enumeration results into concrete modes. A size with no
// interval information is kept with a frame rate of 0.
func candidates(pf camera.PixelFormat, req camera.Request, sizes []sizeRange, rates func(w, h int) []intervalRange) []camera.Candidate {
	var out []camera.Candidate
	for _, sr := range sizes {
		for _, wh := range sr.sizes(req) {
			intervals := rates(wh[0], wh[1])
			if len(intervals) == 0 {
				out = append(out, camera.Candidate{PixelFormat: pf, Width: wh[0], Height: wh[1]})
				continue
			}
			for _, ir := range intervals {
				for _, fps := range ir.rates() {
					out = append(out, camera.Candidate{PixelFormat: pf, Width: wh[0], Height: wh[1], FrameRate: fps})
				}
			}
		}
	}
	return out
}
