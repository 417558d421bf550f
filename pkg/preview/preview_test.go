package preview

import (
	"bytes"
	"context"
	"image/jpeg"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-flowcam/pkg/camera"
	"github.com/teslashibe/go-flowcam/pkg/flow"
	"github.com/teslashibe/go-flowcam/pkg/hub"
	"github.com/teslashibe/go-flowcam/pkg/video"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testImage(t *testing.T, seq uint64) *video.Image {
	t.Helper()
	img, err := video.Decode(camera.RawFrame{
		Seq:     seq,
		TraceID: "trace",
		Width:   32,
		Height:  16,
		Format:  camera.PixelRGB24,
		Data:    camera.TestPattern(32, 16, camera.PixelRGB24),
	})
	require.NoError(t, err)
	return img
}

func TestEncoder_Handle(t *testing.T) {
	edge := flow.NewEdge[*video.Image]("preview", 1)
	e := New(edge, nil, Config{}, quiet())
	assert.Equal(t, DefaultQuality, e.cfg.Quality)

	_, ok := e.Latest()
	assert.False(t, ok)

	e.Handle(testImage(t, 3))
	f, ok := e.Latest()
	require.True(t, ok)
	assert.EqualValues(t, 3, f.Seq)
	assert.Equal(t, "trace", f.TraceID)

	decoded, err := jpeg.Decode(bytes.NewReader(f.JPEG))
	require.NoError(t, err)
	assert.Equal(t, 32, decoded.Bounds().Dx())
	assert.Equal(t, 16, decoded.Bounds().Dy())

	e.Handle(&video.Image{})
	s := e.Stats()
	assert.EqualValues(t, 1, s.Encoded)
	assert.EqualValues(t, 1, s.Failed)
	assert.EqualValues(t, 3, s.LastSeq)
}

func TestEncoder_MinInterval(t *testing.T) {
	e := New(flow.NewEdge[*video.Image]("preview", 1), nil, Config{MinInterval: time.Hour}, quiet())
	e.Handle(testImage(t, 1))
	e.Handle(testImage(t, 2))

	s := e.Stats()
	assert.EqualValues(t, 1, s.Encoded)
	assert.EqualValues(t, 1, s.Skipped)
	assert.EqualValues(t, 1, s.LastSeq)
}

func TestEncoder_RunDrainsClosedEdge(t *testing.T) {
	edge := flow.NewEdge[*video.Image]("preview", 4)
	h := hub.New("camera", quiet())
	go h.Run()
	defer h.Stop()

	e := New(edge, h, Config{Quality: 50}, quiet())
	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, edge.Offer(testImage(t, i)))
	}
	edge.Close()

	require.NoError(t, e.Run(context.Background()))
	assert.EqualValues(t, 3, e.Stats().Encoded)
	assert.EqualValues(t, 3, e.Stats().LastSeq)
}

func TestEncoder_RunStopsOnCancel(t *testing.T) {
	e := New(flow.NewEdge[*video.Image]("preview", 1), nil, Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
