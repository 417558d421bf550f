package video

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/teslashibe/go-flowcam/pkg/camera"
)

func rawFrame(pf camera.PixelFormat, w, h int, data []byte) camera.RawFrame {
	return camera.RawFrame{
		Seq:       7,
		Timestamp: time.Unix(1700000000, 0),
		TraceID:   "trace-7",
		Width:     w,
		Height:    h,
		Format:    pf,
		Data:      data,
	}
}

func TestDecode_RGB24(t *testing.T) {
	data := camera.TestPattern(640, 480, camera.PixelRGB24)
	img, err := Decode(rawFrame(camera.PixelRGB24, 640, 480, data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Width != 640 || img.Height != 480 || img.Layout != LayoutRGB8 {
		t.Fatalf("unexpected geometry %dx%d %s", img.Width, img.Height, img.Layout)
	}
	if !bytes.Equal(img.Pix, data) {
		t.Error("rgb24 decode should be a straight copy")
	}
	if img.Seq != 7 || img.TraceID != "trace-7" || !img.Timestamp.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("metadata not copied: %+v", img)
	}

	data[0] ^= 0xff
	if img.Pix[0] == data[0] {
		t.Error("image must not alias the raw buffer")
	}
}

func TestDecode_Deterministic(t *testing.T) {
	formats := []camera.PixelFormat{
		camera.PixelRGB24, camera.PixelBGR24, camera.PixelGray8, camera.PixelYUYV,
	}
	for _, pf := range formats {
		t.Run(string(pf), func(t *testing.T) {
			raw := rawFrame(pf, 64, 48, camera.TestPattern(64, 48, pf))
			a, err := Decode(raw)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			b, err := Decode(raw)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !a.Equal(b) || !bytes.Equal(a.Pix, b.Pix) {
				t.Error("decoding the same frame twice gave different images")
			}
		})
	}
}

func TestDecode_ColorConversions(t *testing.T) {
	// One red pixel, one blue pixel in each layout.
	tests := []struct {
		name string
		pf   camera.PixelFormat
		data []byte
		want [2]color.RGBA
	}{
		{"bgr24", camera.PixelBGR24, []byte{0, 0, 255, 255, 0, 0}, [2]color.RGBA{{255, 0, 0, 255}, {0, 0, 255, 255}}},
		{"bgra32", camera.PixelBGRA32, []byte{0, 0, 255, 9, 255, 0, 0, 9}, [2]color.RGBA{{255, 0, 0, 255}, {0, 0, 255, 255}}},
		{"gray8", camera.PixelGray8, []byte{10, 200}, [2]color.RGBA{{10, 10, 10, 255}, {200, 200, 200, 255}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Decode(rawFrame(tt.pf, 2, 1, tt.data))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			for x := 0; x < 2; x++ {
				if got := img.RGBAAt(x, 0); got != tt.want[x] {
					t.Errorf("pixel %d = %v, want %v", x, got, tt.want[x])
				}
			}
		})
	}
}

func TestDecode_YUYVMatchesStdlib(t *testing.T) {
	y0, u, y1, v := byte(81), byte(90), byte(145), byte(240)
	img, err := Decode(rawFrame(camera.PixelYUYV, 2, 1, []byte{y0, u, y1, v}))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	r, g, b := color.YCbCrToRGB(y0, u, v)
	if got := img.RGBAAt(0, 0); got != (color.RGBA{r, g, b, 255}) {
		t.Errorf("pixel 0 = %v", got)
	}
	r, g, b = color.YCbCrToRGB(y1, u, v)
	if got := img.RGBAAt(1, 0); got != (color.RGBA{r, g, b, 255}) {
		t.Errorf("pixel 1 = %v", got)
	}
}

func TestDecode_NV12(t *testing.T) {
	// 2x2 frame: 4 luma bytes then one UV pair.
	data := []byte{16, 50, 100, 235, 128, 128}
	img, err := Decode(rawFrame(camera.PixelNV12, 2, 2, data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	for i, want := range []byte{16, 50, 100, 235} {
		got := img.RGBAAt(i%2, i/2)
		if got.R != want || got.G != want || got.B != want {
			t.Errorf("neutral chroma pixel %d = %v, want gray %d", i, got, want)
		}
	}
}

func TestDecode_Stride(t *testing.T) {
	// 2x2 rgb24 with 2 bytes of row padding.
	data := []byte{
		1, 2, 3, 4, 5, 6, 0xEE, 0xEE,
		7, 8, 9, 10, 11, 12,
	}
	raw := rawFrame(camera.PixelRGB24, 2, 2, data)
	raw.Stride = 8
	img, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	if !bytes.Equal(img.Pix, want) {
		t.Errorf("pix = %v, want %v", img.Pix, want)
	}
}

func TestDecode_MJPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 32, 16))
	for i := range src.Pix {
		src.Pix[i] = 0x80
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode: %v", err)
	}

	img, err := Decode(rawFrame(camera.PixelMJPEG, 0, 0, buf.Bytes()))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Width != 32 || img.Height != 16 {
		t.Errorf("size = %dx%d", img.Width, img.Height)
	}
	again, _ := Decode(rawFrame(camera.PixelMJPEG, 0, 0, buf.Bytes()))
	if !img.Equal(again) {
		t.Error("mjpeg decode is not deterministic")
	}

	if _, err := Decode(rawFrame(camera.PixelMJPEG, 64, 16, buf.Bytes())); !errors.Is(err, ErrCorruptFrame) {
		t.Errorf("size mismatch: got %v", err)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  camera.RawFrame
		want error
	}{
		{"unknown format", rawFrame("h264", 2, 2, make([]byte, 64)), ErrUnsupportedPixelFormat},
		{"empty tag", rawFrame("", 2, 2, make([]byte, 64)), ErrUnsupportedPixelFormat},
		{"short rgb", rawFrame(camera.PixelRGB24, 4, 4, make([]byte, 10)), ErrCorruptFrame},
		{"zero size", rawFrame(camera.PixelRGB24, 0, 4, make([]byte, 10)), ErrCorruptFrame},
		{"odd yuyv", rawFrame(camera.PixelYUYV, 3, 1, make([]byte, 6)), ErrCorruptFrame},
		{"odd nv12", rawFrame(camera.PixelNV12, 2, 3, make([]byte, 64)), ErrCorruptFrame},
		{"short nv12", rawFrame(camera.PixelNV12, 4, 4, make([]byte, 16)), ErrCorruptFrame},
		{"garbage jpeg", rawFrame(camera.PixelMJPEG, 0, 0, []byte("not a jpeg")), ErrCorruptFrame},
		{"empty jpeg", rawFrame(camera.PixelMJPEG, 0, 0, nil), ErrCorruptFrame},
		{"huge bgra", rawFrame(camera.PixelBGRA32, 1<<61, 1, make([]byte, 4)), ErrCorruptFrame},
		{"huge rgb", rawFrame(camera.PixelRGB24, 1<<61, 1, make([]byte, 4)), ErrCorruptFrame},
		{"huge yuyv", rawFrame(camera.PixelYUYV, 1<<61, 1, make([]byte, 4)), ErrCorruptFrame},
		{"huge nv12", rawFrame(camera.PixelNV12, 1<<61, 2, make([]byte, 4)), ErrCorruptFrame},
		{"tall gray", rawFrame(camera.PixelGray8, 1, camera.MaxDimension+1, make([]byte, 4)), ErrCorruptFrame},
		{"huge jpeg header", rawFrame(camera.PixelMJPEG, 0, 0, jpegWithHeaderSize(t, 0xFFFF, 0xFFFF)), ErrCorruptFrame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Decode(tt.raw)
			if img != nil {
				t.Error("expected nil image on error")
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			var de *DecodeError
			if !errors.As(err, &de) || de.Format != tt.raw.Format {
				t.Errorf("expected *DecodeError for %q, got %T", tt.raw.Format, err)
			}
		})
	}

	short := rawFrame(camera.PixelRGB24, 4, 4, make([]byte, 10))
	short.Stride = 2
	if _, err := Decode(short); !errors.Is(err, ErrCorruptFrame) {
		t.Errorf("short stride: got %v", err)
	}

	wide := rawFrame(camera.PixelRGB24, 2, 4, make([]byte, 64))
	wide.Stride = 1 << 61
	if _, err := Decode(wide); !errors.Is(err, ErrCorruptFrame) {
		t.Errorf("huge stride: got %v", err)
	}
}

// jpegWithHeaderSize encodes a small JPEG and rewrites the SOF0 dimensions.
func jpegWithHeaderSize(t *testing.T, w, h uint16) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	i := bytes.Index(data, []byte{0xFF, 0xC0})
	if i < 0 {
		t.Fatal("no SOF0 marker")
	}
	// marker(2) length(2) precision(1) height(2) width(2)
	data[i+5], data[i+6] = byte(h>>8), byte(h)
	data[i+7], data[i+8] = byte(w>>8), byte(w)
	return data
}

func TestSupported(t *testing.T) {
	got := Supported()
	if len(got) != 7 {
		t.Errorf("Supported() = %v", got)
	}
	if !IsSupported(camera.PixelYUYV) || IsSupported("h264") {
		t.Error("IsSupported mismatch")
	}
}

func TestImage_RGBAAndJPEG(t *testing.T) {
	img, err := Decode(rawFrame(camera.PixelRGB24, 16, 8, camera.TestPattern(16, 8, camera.PixelRGB24)))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	rgba := img.RGBA()
	if rgba.Bounds() != image.Rect(0, 0, 16, 8) {
		t.Errorf("bounds = %v", rgba.Bounds())
	}
	if got := rgba.RGBAAt(15, 7); got != img.RGBAAt(15, 7) {
		t.Errorf("RGBA() pixel %v != %v", got, img.RGBAAt(15, 7))
	}
	if img.RGBAAt(-1, 0) != (color.RGBA{}) {
		t.Error("out of bounds should be transparent black")
	}

	data, err := EncodeJPEG(img, 80)
	if err != nil {
		t.Fatalf("EncodeJPEG failed: %v", err)
	}
	back, err := Decode(rawFrame(camera.PixelMJPEG, 16, 8, data))
	if err != nil {
		t.Fatalf("decode encoded jpeg: %v", err)
	}
	if back.Width != 16 || back.Height != 8 {
		t.Errorf("size = %dx%d", back.Width, back.Height)
	}

	if _, err := EncodeJPEG(&Image{}, 80); err == nil {
		t.Error("expected error for empty image")
	}
}
