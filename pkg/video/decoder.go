package video

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sort"

	"github.com/teslashibe/go-flowcam/pkg/camera"
)

type decodeFunc func(raw camera.RawFrame) (*Image, error)

// decoders is never written after package initialisation.
var decoders = map[camera.PixelFormat]decodeFunc{
	camera.PixelRGB24:  decodeRGB24,
	camera.PixelBGR24:  decodeBGR24,
	camera.PixelBGRA32: decodeBGRA32,
	camera.PixelGray8:  decodeGray8,
	camera.PixelYUYV:   decodeYUYV,
	camera.PixelNV12:   decodeNV12,
	camera.PixelMJPEG:  decodeMJPEG,
}

// Decode converts a raw frame into an RGB Image.
//
// Decode is a pure function of the frame: it touches no device and no shared
// state, and identical frames always decode to identical images. Failures
// are *DecodeError.
func Decode(raw camera.RawFrame) (*Image, error) {
	fn, ok := decoders[raw.Format]
	if !ok {
		return nil, &DecodeError{Kind: UnsupportedPixelFormat, Format: raw.Format}
	}
	img, err := fn(raw)
	if err != nil {
		return nil, err
	}
	img.Seq = raw.Seq
	img.Timestamp = raw.Timestamp
	img.TraceID = raw.TraceID
	return img, nil
}

// Supported returns the pixel formats Decode accepts, sorted.
func Supported() []camera.PixelFormat {
	out := make([]camera.PixelFormat, 0, len(decoders))
	for pf := range decoders {
		out = append(out, pf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsSupported reports whether Decode accepts pf.
func IsSupported(pf camera.PixelFormat) bool {
	_, ok := decoders[pf]
	return ok
}

// checkSize rejects sizes outside 1..camera.MaxDimension. Once it passes,
// size arithmetic on the frame cannot overflow int.
func checkSize(pf camera.PixelFormat, w, h int) error {
	if w <= 0 || h <= 0 || w > camera.MaxDimension || h > camera.MaxDimension {
		return corrupt(pf, "invalid size %dx%d", w, h)
	}
	return nil
}

// checkStride bounds a stride by the buffer it indexes.
func checkStride(raw camera.RawFrame, stride, row int) error {
	if stride < row {
		return corrupt(raw.Format, "stride %d shorter than row of %d bytes", stride, row)
	}
	if raw.Height > 1 && stride > len(raw.Data) {
		return corrupt(raw.Format, "stride %d exceeds buffer of %d bytes", stride, len(raw.Data))
	}
	return nil
}

// packedRows validates a packed layout with bpp bytes per pixel and returns
// the effective stride.
func packedRows(raw camera.RawFrame, bpp int) (int, error) {
	if err := checkSize(raw.Format, raw.Width, raw.Height); err != nil {
		return 0, err
	}
	stride := raw.Stride
	if stride == 0 {
		stride = raw.Width * bpp
	}
	if err := checkStride(raw, stride, raw.Width*bpp); err != nil {
		return 0, err
	}
	need := stride*(raw.Height-1) + raw.Width*bpp
	if len(raw.Data) < need {
		return 0, corrupt(raw.Format, "have %d bytes, need %d", len(raw.Data), need)
	}
	return stride, nil
}

// convertPacked runs px over every source pixel.
func convertPacked(raw camera.RawFrame, bpp int, px func(dst, src []byte)) (*Image, error) {
	stride, err := packedRows(raw, bpp)
	if err != nil {
		return nil, err
	}
	img := newImage(raw.Width, raw.Height)
	for y := 0; y < raw.Height; y++ {
		src := raw.Data[y*stride:]
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < raw.Width; x++ {
			px(dst[x*3:x*3+3], src[x*bpp:x*bpp+bpp])
		}
	}
	return img, nil
}

func decodeRGB24(raw camera.RawFrame) (*Image, error) {
	stride, err := packedRows(raw, 3)
	if err != nil {
		return nil, err
	}
	img := newImage(raw.Width, raw.Height)
	for y := 0; y < raw.Height; y++ {
		copy(img.Pix[y*img.Stride:(y+1)*img.Stride], raw.Data[y*stride:])
	}
	return img, nil
}

func decodeBGR24(raw camera.RawFrame) (*Image, error) {
	return convertPacked(raw, 3, func(dst, src []byte) {
		dst[0], dst[1], dst[2] = src[2], src[1], src[0]
	})
}

func decodeBGRA32(raw camera.RawFrame) (*Image, error) {
	return convertPacked(raw, 4, func(dst, src []byte) {
		dst[0], dst[1], dst[2] = src[2], src[1], src[0]
	})
}

func decodeGray8(raw camera.RawFrame) (*Image, error) {
	return convertPacked(raw, 1, func(dst, src []byte) {
		dst[0], dst[1], dst[2] = src[0], src[0], src[0]
	})
}

// decodeYUYV handles packed 4:2:2: each 4-byte group Y0 U Y1 V covers two
// pixels sharing one chroma pair.
func decodeYUYV(raw camera.RawFrame) (*Image, error) {
	if raw.Width%2 != 0 {
		return nil, corrupt(raw.Format, "odd width %d", raw.Width)
	}
	stride, err := packedRows(raw, 2)
	if err != nil {
		return nil, err
	}
	img := newImage(raw.Width, raw.Height)
	for y := 0; y < raw.Height; y++ {
		src := raw.Data[y*stride:]
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < raw.Width; x += 2 {
			s := src[x*2 : x*2+4]
			y0, u, y1, v := s[0], s[1], s[2], s[3]
			dst[x*3], dst[x*3+1], dst[x*3+2] = color.YCbCrToRGB(y0, u, v)
			dst[x*3+3], dst[x*3+4], dst[x*3+5] = color.YCbCrToRGB(y1, u, v)
		}
	}
	return img, nil
}

// decodeNV12 handles a Y plane followed by an interleaved UV plane with the
// same stride and half the rows.
func decodeNV12(raw camera.RawFrame) (*Image, error) {
	if err := checkSize(raw.Format, raw.Width, raw.Height); err != nil {
		return nil, err
	}
	if raw.Width%2 != 0 || raw.Height%2 != 0 {
		return nil, corrupt(raw.Format, "odd size %dx%d", raw.Width, raw.Height)
	}
	stride := raw.Stride
	if stride == 0 {
		stride = raw.Width
	}
	if err := checkStride(raw, stride, raw.Width); err != nil {
		return nil, err
	}
	uvStart := stride * raw.Height
	need := uvStart + stride*(raw.Height/2)
	if len(raw.Data) < need {
		return nil, corrupt(raw.Format, "have %d bytes, need %d", len(raw.Data), need)
	}

	img := newImage(raw.Width, raw.Height)
	for y := 0; y < raw.Height; y++ {
		luma := raw.Data[y*stride:]
		chroma := raw.Data[uvStart+(y/2)*stride:]
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < raw.Width; x++ {
			c := (x / 2) * 2
			dst[x*3], dst[x*3+1], dst[x*3+2] = color.YCbCrToRGB(luma[x], chroma[c], chroma[c+1])
		}
	}
	return img, nil
}

func decodeMJPEG(raw camera.RawFrame) (*Image, error) {
	if len(raw.Data) == 0 {
		return nil, corrupt(raw.Format, "empty buffer")
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw.Data))
	if err != nil {
		return nil, &DecodeError{Kind: CorruptFrame, Format: raw.Format, Err: err}
	}
	if err := checkSize(raw.Format, cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	src, err := jpeg.Decode(bytes.NewReader(raw.Data))
	if err != nil {
		return nil, &DecodeError{Kind: CorruptFrame, Format: raw.Format, Err: err}
	}

	b := src.Bounds()
	if (raw.Width != 0 && raw.Width != b.Dx()) || (raw.Height != 0 && raw.Height != b.Dy()) {
		return nil, corrupt(raw.Format, "jpeg is %dx%d, frame declares %dx%d", b.Dx(), b.Dy(), raw.Width, raw.Height)
	}
	if b.Empty() {
		return nil, corrupt(raw.Format, "empty jpeg")
	}

	img := newImage(b.Dx(), b.Dy())
	for y := 0; y < img.Height; y++ {
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < img.Width; x++ {
			px := dst[x*3 : x*3+3]
			switch s := src.(type) {
			case *image.YCbCr:
				c := s.YCbCrAt(b.Min.X+x, b.Min.Y+y)
				px[0], px[1], px[2] = color.YCbCrToRGB(c.Y, c.Cb, c.Cr)
			case *image.Gray:
				g := s.GrayAt(b.Min.X+x, b.Min.Y+y).Y
				px[0], px[1], px[2] = g, g, g
			default:
				c := color.RGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
				px[0], px[1], px[2] = c.R, c.G, c.B
			}
		}
	}
	return img, nil
}

// EncodeJPEG compresses an image to JPEG bytes.
func EncodeJPEG(img *Image, quality int) ([]byte, error) {
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return nil, fmt.Errorf("video: cannot encode empty image")
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img.RGBA(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
