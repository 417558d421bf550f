package camera

import (
	"fmt"
	"math"
)

// Candidate is one capture mode a device advertises.
type Candidate struct {
	PixelFormat PixelFormat
	Width       int
	Height      int
	FrameRate   float64
}

func (c Candidate) area() int { return c.Width * c.Height }

// Format converts the candidate into the negotiated format.
func (c Candidate) Format() Format {
	return Format{Width: c.Width, Height: c.Height, FrameRate: c.FrameRate, PixelFormat: c.PixelFormat}
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s %dx%d@%g", c.PixelFormat, c.Width, c.Height, c.FrameRate)
}

// Choose picks the candidate that best satisfies req.
//
// prefer ranks pixel formats; when non-empty, candidates in other formats are
// ignored and ties are broken by rank. Exact requests match size exactly and
// frame rate to within half a frame per second. The returned error wraps
// ErrUnsupportedFormat.
func Choose(req Request, candidates []Candidate, prefer []PixelFormat) (Candidate, error) {
	if err := req.Validate(); err != nil {
		return Candidate{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	rank := func(pf PixelFormat) int {
		for i, p := range prefer {
			if p == pf {
				return i
			}
		}
		if len(prefer) == 0 {
			return 0
		}
		return -1
	}

	better := func(a, b Candidate) bool {
		switch req.Mode {
		case ModeHighestFrameRate:
			if a.FrameRate != b.FrameRate {
				return a.FrameRate > b.FrameRate
			}
			if a.area() != b.area() {
				return a.area() > b.area()
			}
		case ModeHighestResolution:
			if a.area() != b.area() {
				return a.area() > b.area()
			}
			if a.FrameRate != b.FrameRate {
				return a.FrameRate > b.FrameRate
			}
		}
		return rank(a.PixelFormat) < rank(b.PixelFormat)
	}

	var (
		best  Candidate
		found bool
	)
	for _, c := range candidates {
		if c.Width <= 0 || c.Height <= 0 || rank(c.PixelFormat) < 0 {
			continue
		}
		if req.Mode == ModeExact {
			if c.Width != req.Width || c.Height != req.Height ||
				math.Abs(c.FrameRate-float64(req.FrameRate)) > 0.5 {
				continue
			}
		}
		if !found || better(c, best) {
			best, found = c, true
		}
	}
	if !found {
		return Candidate{}, fmt.Errorf("%w: no mode satisfies %s", ErrUnsupportedFormat, req)
	}
	return best, nil
}
