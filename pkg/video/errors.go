package video

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-flowcam/pkg/camera"
)

// Sentinel errors matched by DecodeError.
var (
	// ErrUnsupportedPixelFormat is returned for pixel formats with no decoder.
	ErrUnsupportedPixelFormat = errors.New("video: unsupported pixel format")

	// ErrCorruptFrame is returned when the raw bytes do not match the format.
	ErrCorruptFrame = errors.New("video: corrupt frame")
)

// DecodeErrorKind classifies decode failures.
type DecodeErrorKind int

const (
	UnsupportedPixelFormat DecodeErrorKind = iota
	CorruptFrame
)

// String returns a human-readable kind.
func (k DecodeErrorKind) String() string {
	switch k {
	case UnsupportedPixelFormat:
		return "unsupported pixel format"
	case CorruptFrame:
		return "corrupt frame"
	default:
		return "unknown"
	}
}

// DecodeError reports a failed decode. It never implies a device fault.
type DecodeError struct {
	Kind   DecodeErrorKind
	Format camera.PixelFormat
	Err    error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("video [%s]: %s", e.Format, e.Kind)
	}
	return fmt.Sprintf("video [%s]: %s: %v", e.Format, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error kind.
func (e *DecodeError) Is(target error) bool {
	switch e.Kind {
	case UnsupportedPixelFormat:
		return target == ErrUnsupportedPixelFormat
	case CorruptFrame:
		return target == ErrCorruptFrame
	}
	return false
}

func corrupt(pf camera.PixelFormat, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: CorruptFrame, Format: pf, Err: fmt.Errorf(format, args...)}
}
