// Package framelog records raw camera frames to disk and plays them back.
//
// A log starts with the 8-byte magic "FLOWCAM1" followed by records of
//
//	[8]byte capture time, unix nanoseconds, little endian
//	[4]byte payload length, little endian
//	payload, one CBOR-encoded frame
//
// Logs written on one host replay on any other, which makes them useful as
// test fixtures for the decoder and as a camera stand-in on machines without
// one.
package framelog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/teslashibe/go-flowcam/pkg/camera"
)

// Magic opens every frame log.
const Magic = "FLOWCAM1"

const headerSize = 12

// MaxRecordSize bounds a single payload. Larger length fields are treated as
// corruption.
const MaxRecordSize = 256 << 20

var (
	// ErrBadMagic is returned when a file is not a frame log.
	ErrBadMagic = errors.New("framelog: bad magic")
	// ErrClosed is returned by Record after Close.
	ErrClosed = errors.New("framelog: writer closed")
)

// record is the CBOR payload of one frame.
type record struct {
	Seq       uint64 `cbor:"1,keyasint"`
	Timestamp int64  `cbor:"2,keyasint"`
	TraceID   string `cbor:"3,keyasint,omitempty"`
	Width     int    `cbor:"4,keyasint"`
	Height    int    `cbor:"5,keyasint"`
	Stride    int    `cbor:"6,keyasint,omitempty"`
	Format    string `cbor:"7,keyasint"`
	Data      []byte `cbor:"8,keyasint"`
}

func toRecord(f camera.RawFrame) record {
	r := record{
		Seq:     f.Seq,
		TraceID: f.TraceID,
		Width:   f.Width,
		Height:  f.Height,
		Stride:  f.Stride,
		Format:  string(f.Format),
		Data:    f.Data,
	}
	if !f.Timestamp.IsZero() {
		r.Timestamp = f.Timestamp.UnixNano()
	}
	return r
}

func (r record) frame() camera.RawFrame {
	f := camera.RawFrame{
		Seq:     r.Seq,
		TraceID: r.TraceID,
		Width:   r.Width,
		Height:  r.Height,
		Stride:  r.Stride,
		Format:  camera.PixelFormat(r.Format),
		Data:    r.Data,
	}
	if r.Timestamp != 0 {
		f.Timestamp = time.Unix(0, r.Timestamp)
	}
	return f
}

// Writer appends frames to a log. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	closer io.Closer
	w      *bufio.Writer
	count  uint64
}

// NewWriter writes the magic to w and returns a Writer appending to it. If w
// is an io.Closer, Close closes it.
func NewWriter(w io.Writer) (*Writer, error) {
	bw := bufio.NewWriterSize(w, 1<<20)
	if _, err := bw.WriteString(Magic); err != nil {
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		return nil, err
	}
	lw := &Writer{w: bw}
	if c, ok := w.(io.Closer); ok {
		lw.closer = c
	}
	return lw, nil
}

// Create creates the log file at path, making parent directories as needed.
func Create(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

// Record appends one frame and flushes it.
func (w *Writer) Record(f camera.RawFrame) error {
	payload, err := cbor.Marshal(toRecord(f))
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", f.Seq, err)
	}

	ts := f.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	var header [headerSize]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(ts.UnixNano()))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		return ErrClosed
	}
	if _, err := w.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.w.Write(payload); err != nil {
		return err
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of frames recorded.
func (w *Writer) Count() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close flushes the log and closes the underlying file. It is safe to call
// Close multiple times.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		return nil
	}
	err := w.w.Flush()
	w.w = nil
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
