package video

import (
	"image"
	"image/color"
)

// BGR is an in-memory image of packed 8-bit blue, green, red triples,
// the layout ffmpeg emits for pix_fmt bgr24.
type BGR struct {
	// Pix holds the image's pixels in B, G, R order. The pixel at
	// (x, y) starts at Pix[(y-Rect.Min.Y)*Stride + (x-Rect.Min.X)*3].
	Pix []uint8
	// Stride is the Pix stride (in bytes) between vertically adjacent pixels.
	Stride int
	// Rect is the image's bounds.
	Rect image.Rectangle
}

// NewBGR returns a new BGR image with the given bounds.
func NewBGR(r image.Rectangle) *BGR {
	w, h := r.Dx(), r.Dy()
	return &BGR{
		Pix:    make([]uint8, 3*w*h),
		Stride: 3 * w,
		Rect:   r,
	}
}

func (p *BGR) ColorModel() color.Model { return color.RGBAModel }

func (p *BGR) Bounds() image.Rectangle { return p.Rect }

func (p *BGR) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := p.PixOffset(x, y)
	return color.RGBA{R: p.Pix[i+2], G: p.Pix[i+1], B: p.Pix[i], A: 0xff}
}

// PixOffset returns the index of the first element of Pix that corresponds to
// the pixel at (x, y).
func (p *BGR) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
}

// Set stores a pixel in B, G, R order.
func (p *BGR) Set(x, y int, b, g, r uint8) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	p.Pix[i+0] = b
	p.Pix[i+1] = g
	p.Pix[i+2] = r
}

// SubImage returns an image representing the portion of p visible through r.
// The returned value shares pixels with the original image. An r that does
// not overlap p yields an empty image.
func (p *BGR) SubImage(r image.Rectangle) *BGR {
	r = r.Intersect(p.Rect)
	if r.Empty() {
		return &BGR{}
	}
	i := p.PixOffset(r.Min.X, r.Min.Y)
	return &BGR{
		Pix:    p.Pix[i:],
		Stride: p.Stride,
		Rect:   r,
	}
}

// Empty reports whether the image has no pixels.
func (p *BGR) Empty() bool {
	return p == nil || p.Rect.Empty()
}
