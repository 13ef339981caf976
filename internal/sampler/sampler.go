/**
 * Sampler & Cropper
 *
 * Selects every Nth decoded frame, maps its index to a timestamp, and cuts
 * the configured regions out of it for recognition.
 */

package sampler

import (
	"fmt"
	"image"
	"math"

	"github.com/adverant/nexus/frame-ocr/internal/video"
)

// DefaultInterval is the stride used when none is configured.
const DefaultInterval = 30

// Sampler decides which frames are keyframes.
type Sampler struct {
	Interval int
}

// New returns a Sampler with the given stride.
func New(interval int) (*Sampler, error) {
	if interval < 1 {
		return nil, fmt.Errorf("frame interval must be at least 1, got %d", interval)
	}
	return &Sampler{Interval: interval}, nil
}

// IsKeyframe reports whether index is sampled. Index 0 always is.
func (s *Sampler) IsKeyframe(index int) bool {
	return index%s.Interval == 0
}

// Timestamp converts a frame index to seconds, rounded to 2 decimals.
func Timestamp(index int, fps float64) float64 {
	return math.Round(float64(index)/fps*100) / 100
}

// KeyframeCount is the number of keyframes in a stream of total frames.
func (s *Sampler) KeyframeCount(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + s.Interval - 1) / s.Interval
}

// Crop returns the part of frame inside r, or the whole frame when r is nil.
// Regions outside the frame, or with zero width or height, give an empty image.
// The frame itself is never modified.
func Crop(frame *video.BGR, r *Region) *video.BGR {
	if r == nil {
		return frame
	}
	return frame.SubImage(r.Rect())
}

// ToRGB copies img into a new NRGBA image, reordering B,G,R to R,G,B.
// The result does not alias img.
func ToRGB(img *video.BGR) *image.NRGBA {
	if img.Empty() {
		return image.NewNRGBA(image.Rectangle{})
	}

	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*3]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()*4]
		for x, j := 0, 0; x < len(src); x, j = x+3, j+4 {
			dst[j+0] = src[x+2]
			dst[j+1] = src[x+1]
			dst[j+2] = src[x+0]
			dst[j+3] = 0xff
		}
	}
	return out
}
