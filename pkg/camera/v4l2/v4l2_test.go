package v4l2

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/teslashibe/go-flowcam/pkg/camera"
)

func TestFourCC(t *testing.T) {
	for code, pf := range fourccs {
		got, ok := fourccOf(pf)
		if !ok || got != code {
			t.Errorf("fourccOf(%s) = %#x, %v; want %#x", pf, got, ok, code)
		}
		back, ok := pixelFormatOf(code)
		if !ok || back != pf {
			t.Errorf("pixelFormatOf(%#x) = %s, %v", code, back, ok)
		}
	}
	if _, ok := pixelFormatOf(0x34363248); ok { // 'H264'
		t.Error("H264 should not be decodable")
	}
	for _, pf := range preferred {
		if _, ok := fourccOf(pf); !ok {
			t.Errorf("preferred format %s has no fourcc", pf)
		}
	}
}

func TestOpener_Defaults(t *testing.T) {
	o := NewOpener()
	if got := o.path(2); got != "/dev/video2" {
		t.Errorf("path(2) = %q", got)
	}
	if got := o.timeout(); got != DefaultTimeout {
		t.Errorf("timeout = %v", got)
	}

	o.Path = func(i int) string { return fmt.Sprintf("/tmp/cam%d", i) }
	o.Timeout = 1500 * time.Millisecond
	if got := o.path(1); got != "/tmp/cam1" {
		t.Errorf("path(1) = %q", got)
	}
	if got := timeoutSeconds(o.timeout()); got != 2 {
		t.Errorf("timeoutSeconds(1.5s) = %d, want 2", got)
	}
	if got := timeoutSeconds(0); got != 1 {
		t.Errorf("timeoutSeconds(0) = %d, want 1", got)
	}
}

func TestOpenErrorKind(t *testing.T) {
	busy := &os.PathError{Op: "open", Path: "/dev/video0", Err: syscall.EBUSY}
	if got := openErrorKind(busy); got != camera.Busy {
		t.Errorf("EBUSY -> %v", got)
	}
	if got := openErrorKind(fmt.Errorf("wrapped: %w", busy)); got != camera.Busy {
		t.Errorf("wrapped EBUSY -> %v", got)
	}
	missing := &os.PathError{Op: "open", Path: "/dev/video9", Err: syscall.ENOENT}
	if got := openErrorKind(missing); got != camera.Unavailable {
		t.Errorf("ENOENT -> %v", got)
	}
	if got := openErrorKind(errors.New("boom")); got != camera.Unavailable {
		t.Errorf("plain -> %v", got)
	}
}

func TestSizeRange(t *testing.T) {
	discrete := sizeRange{MinWidth: 640, MaxWidth: 640, MinHeight: 480, MaxHeight: 480}
	if got := discrete.sizes(camera.HighestResolution()); len(got) != 1 || got[0] != [2]int{640, 480} {
		t.Errorf("discrete sizes = %v", got)
	}

	stepwise := sizeRange{
		MinWidth: 160, MaxWidth: 1920, StepWidth: 16,
		MinHeight: 120, MaxHeight: 1080, StepHeight: 8,
	}
	got := stepwise.sizes(camera.Exact(1280, 720, 30))
	if len(got) != 3 || got[2] != [2]int{1280, 720} {
		t.Errorf("stepwise exact sizes = %v", got)
	}
	if got := stepwise.sizes(camera.Exact(1281, 720, 30)); len(got) != 2 {
		t.Errorf("misaligned width should not be offered: %v", got)
	}
	if stepwise.contains(2000, 720) {
		t.Error("contains accepted width above max")
	}
}

func TestIntervalRange(t *testing.T) {
	discrete := intervalRange{MinNumerator: 1, MaxNumerator: 1, MinDenominator: 30, MaxDenominator: 30}
	if got := discrete.rates(); len(got) != 1 || got[0] != 30 {
		t.Errorf("discrete rates = %v", got)
	}
	span := intervalRange{MinNumerator: 1, MaxNumerator: 2, MinDenominator: 15, MaxDenominator: 60}
	got := span.rates()
	if len(got) != 2 || got[0] != 60 || got[1] != 7.5 {
		t.Errorf("span rates = %v", got)
	}
	if got := (intervalRange{}).rates(); len(got) != 1 || got[0] != 0 {
		t.Errorf("zero interval rates = %v", got)
	}
}

func TestCandidates_FeedChoose(t *testing.T) {
	sizes := []sizeRange{
		{MinWidth: 640, MaxWidth: 640, MinHeight: 480, MaxHeight: 480},
		{MinWidth: 1280, MaxWidth: 1280, MinHeight: 720, MaxHeight: 720},
	}
	rates := func(w, h int) []intervalRange {
		if w == 640 {
			return []intervalRange{{MinNumerator: 1, MaxNumerator: 1, MinDenominator: 60, MaxDenominator: 60}}
		}
		return []intervalRange{{MinNumerator: 1, MaxNumerator: 1, MinDenominator: 10, MaxDenominator: 10}}
	}

	modes := candidates(camera.PixelYUYV, camera.HighestFrameRate(), sizes, rates)
	if len(modes) != 2 {
		t.Fatalf("candidates = %v", modes)
	}

	fast, err := camera.Choose(camera.HighestFrameRate(), modes, preferred)
	if err != nil || fast.Width != 640 || fast.FrameRate != 60 {
		t.Errorf("highest framerate = %v, %v", fast, err)
	}
	big, err := camera.Choose(camera.HighestResolution(), modes, preferred)
	if err != nil || big.Width != 1280 {
		t.Errorf("highest resolution = %v, %v", big, err)
	}
	if _, err := camera.Choose(camera.Exact(1280, 720, 30), modes, preferred); !errors.Is(err, camera.ErrUnsupportedFormat) {
		t.Errorf("exact 1280x720@30 error = %v", err)
	}
}
