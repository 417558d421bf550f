package framelog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/teslashibe/go-flowcam/pkg/camera"
)

// Reader reads frames from a log.
type Reader struct {
	r      *bufio.Reader
	closer io.Closer
	count  uint64
}

// NewReader checks the magic and returns a Reader positioned at the first
// record.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(br, magic); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrBadMagic
		}
		return nil, err
	}
	if string(magic) != Magic {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, magic)
	}
	return &Reader{r: br}, nil
}

// Open opens the log at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Next returns the next frame. It returns io.EOF at a clean end of log and
// io.ErrUnexpectedEOF for a truncated record. Frames without a recorded
// timestamp get the header time.
func (r *Reader) Next() (camera.RawFrame, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return camera.RawFrame{}, io.EOF
		}
		return camera.RawFrame{}, fmt.Errorf("record %d header: %w", r.count, err)
	}
	ts := int64(binary.LittleEndian.Uint64(header[:8]))
	size := binary.LittleEndian.Uint32(header[8:12])
	if size > MaxRecordSize {
		return camera.RawFrame{}, fmt.Errorf("record %d: payload of %d bytes exceeds limit", r.count, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return camera.RawFrame{}, fmt.Errorf("record %d payload: %w", r.count, err)
	}

	var rec record
	if err := cbor.Unmarshal(payload, &rec); err != nil {
		return camera.RawFrame{}, fmt.Errorf("record %d: decode: %w", r.count, err)
	}
	r.count++

	f := rec.frame()
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Unix(0, ts)
	}
	return f, nil
}

// Count returns the number of frames read so far.
func (r *Reader) Count() uint64 {
	return r.count
}

// Close closes the file opened by Open. It is a no-op for readers created
// with NewReader.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	c := r.closer
	r.closer = nil
	return c.Close()
}
