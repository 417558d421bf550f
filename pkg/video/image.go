// Package video turns raw device frames into the pipeline's canonical image:
// 8-bit interleaved RGB with explicit width, height and stride.
package video

import (
	"image"
	"image/color"
	"time"
)

// Layout names the pixel layout of an Image.
type Layout string

// LayoutRGB8 is 8-bit R, G, B interleaved, 3 bytes per pixel.
const LayoutRGB8 Layout = "rgb8"

// Image is a decoded frame. Images are shared by every consumer of an output
// port and must be treated as read-only once produced.
type Image struct {
	Width  int
	Height int
	Layout Layout
	// Stride is the distance in bytes between vertically adjacent pixels.
	Stride int
	Pix    []byte

	// Seq, Timestamp and TraceID are copied from the raw frame.
	Seq       uint64
	Timestamp time.Time
	TraceID   string
}

func newImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Layout: LayoutRGB8,
		Stride: width * 3,
		Pix:    make([]byte, width*height*3),
	}
}

// ColorModel implements image.Image.
func (m *Image) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image.
func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// At implements image.Image.
func (m *Image) At(x, y int) color.Color {
	return m.RGBAAt(x, y)
}

// RGBAAt returns the pixel at (x, y) as an opaque color.RGBA.
func (m *Image) RGBAAt(x, y int) color.RGBA {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return color.RGBA{}
	}
	i := y*m.Stride + x*3
	return color.RGBA{R: m.Pix[i], G: m.Pix[i+1], B: m.Pix[i+2], A: 0xff}
}

// RGBA converts the image to a new *image.RGBA.
func (m *Image) RGBA() *image.RGBA {
	out := image.NewRGBA(m.Bounds())
	for y := 0; y < m.Height; y++ {
		src := m.Pix[y*m.Stride : y*m.Stride+m.Width*3]
		dst := out.Pix[y*out.Stride : y*out.Stride+m.Width*4]
		for x := 0; x < m.Width; x++ {
			dst[x*4] = src[x*3]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 0xff
		}
	}
	return out
}

// Equal reports whether two images have the same geometry and pixels.
func (m *Image) Equal(o *Image) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.Width != o.Width || m.Height != o.Height || m.Layout != o.Layout {
		return false
	}
	for y := 0; y < m.Height; y++ {
		a := m.Pix[y*m.Stride : y*m.Stride+m.Width*3]
		b := o.Pix[y*o.Stride : y*o.Stride+o.Width*3]
		if string(a) != string(b) {
			return false
		}
	}
	return true
}
