package camera

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by DeviceError and CaptureError.
var (
	// ErrUnavailable is returned when no openable device exists at the index.
	ErrUnavailable = errors.New("camera: device unavailable")

	// ErrBusy is returned when the device is held by another process.
	ErrBusy = errors.New("camera: device busy")

	// ErrUnsupportedFormat is returned when the device cannot deliver the
	// requested format.
	ErrUnsupportedFormat = errors.New("camera: unsupported format")

	// ErrClosed is returned when capturing from a closed device.
	ErrClosed = errors.New("camera: device closed")

	// ErrEmptyFrame is returned when the driver delivered no pixels.
	ErrEmptyFrame = errors.New("camera: empty frame")

	// ErrUnknownBackend is returned by Registry for unregistered backends.
	ErrUnknownBackend = errors.New("camera: unknown backend")
)

// DeviceErrorKind classifies open-time failures.
type DeviceErrorKind int

const (
	Unavailable DeviceErrorKind = iota
	Busy
	UnsupportedFormat
)

// String returns a human-readable kind.
func (k DeviceErrorKind) String() string {
	switch k {
	case Unavailable:
		return "unavailable"
	case Busy:
		return "busy"
	case UnsupportedFormat:
		return "unsupported format"
	default:
		return "unknown"
	}
}

func (k DeviceErrorKind) sentinel() error {
	switch k {
	case Busy:
		return ErrBusy
	case UnsupportedFormat:
		return ErrUnsupportedFormat
	default:
		return ErrUnavailable
	}
}

// DeviceError reports a failure to open a device.
type DeviceError struct {
	Kind    DeviceErrorKind
	Backend string
	Index   int
	Err     error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("camera [%s:%d]: %s", e.Backend, e.Index, e.Kind)
	}
	return fmt.Sprintf("camera [%s:%d]: %s: %v", e.Backend, e.Index, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error kind.
func (e *DeviceError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// NewDeviceError builds a DeviceError.
func NewDeviceError(kind DeviceErrorKind, backend string, index int, err error) *DeviceError {
	return &DeviceError{Kind: kind, Backend: backend, Index: index, Err: err}
}

// AsDeviceError returns err as a *DeviceError, classifying anything else as
// Unavailable.
func AsDeviceError(err error, backend string, index int) *DeviceError {
	var de *DeviceError
	if errors.As(err, &de) {
		return de
	}
	return NewDeviceError(Unavailable, backend, index, err)
}

// CaptureError reports a failed capture on an open device.
type CaptureError struct {
	Backend string
	Index   int
	// Temporary is true when a later capture may succeed (busy device,
	// driver timeout, empty frame). False means the device is gone.
	Temporary bool
	Err       error
}

// Error implements the error interface.
func (e *CaptureError) Error() string {
	kind := "fatal"
	if e.Temporary {
		kind = "temporary"
	}
	return fmt.Sprintf("camera [%s:%d]: capture failed (%s): %v", e.Backend, e.Index, kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *CaptureError) Unwrap() error {
	return e.Err
}

// IsTemporary reports whether the device may still deliver frames.
func (e *CaptureError) IsTemporary() bool {
	return e.Temporary
}

// AsCaptureError returns err as a *CaptureError, treating anything else as
// a temporary failure of the given device.
func AsCaptureError(err error, backend string, index int) *CaptureError {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce
	}
	return &CaptureError{Backend: backend, Index: index, Temporary: true, Err: err}
}

// IsTemporary reports whether err carries a temporary capture failure.
func IsTemporary(err error) bool {
	var ce *CaptureError
	return errors.As(err, &ce) && ce.Temporary
}
