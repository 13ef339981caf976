/**
 * Recognizer Adapter
 *
 * The OCR engine is a black box behind Recognizer: an RGB image goes in,
 * text comes out. No layout, boxes, or confidences are consumed.
 */

package ocr

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"strings"
)

// Recognizer turns an image into text.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// RecognizerFunc adapts a function to the Recognizer interface.
type RecognizerFunc func(ctx context.Context, img image.Image) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context, img image.Image) (string, error) {
	return f(ctx, img)
}

// ErrorPolicy decides what a hard recognizer failure does to a run.
type ErrorPolicy string

const (
	// PolicyAbort fails the whole run on the first recognizer error.
	PolicyAbort ErrorPolicy = "abort"
	// PolicyEmpty records "" for the failing crop and keeps going.
	PolicyEmpty ErrorPolicy = "empty"
)

// ParseErrorPolicy parses a policy name; "" means PolicyAbort.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch ErrorPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyAbort:
		return PolicyAbort, nil
	case PolicyEmpty:
		return PolicyEmpty, nil
	default:
		return "", fmt.Errorf("unknown OCR error policy %q (want %q or %q)", s, PolicyAbort, PolicyEmpty)
	}
}

// IsEmpty reports whether img has no pixels.
func IsEmpty(img image.Image) bool {
	return img == nil || img.Bounds().Empty()
}

// toNRGBA returns img as an *image.NRGBA anchored at the origin.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
