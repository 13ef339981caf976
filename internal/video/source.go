/**
 * Frame Source
 *
 * A Source yields decoded frames in playback order, one per Next call.
 * Every frame is decoded whether or not the caller samples it, so the
 * frame index always matches the decoder's position.
 */

package video

import (
	"context"
	"errors"
	"iter"
)

// ErrEndOfStream is returned by Next when the stream has no more frames.
var ErrEndOfStream = errors.New("video: end of stream")

// Frame is one decoded frame. Image is only valid until the next call to
// Next on the Source that produced it.
type Frame struct {
	Index int
	Image *BGR
}

// Source is an open video stream.
type Source interface {
	// Next decodes the next frame. It returns ErrEndOfStream once the
	// stream is exhausted.
	Next() (Frame, error)
	// FrameRate is the stream's nominal frame rate in frames per second.
	FrameRate() float64
	// Close releases the decoder. It is safe to call more than once.
	Close() error
}

// Opener opens a Source for a path.
type Opener interface {
	Open(ctx context.Context, path string) (Source, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, path string) (Source, error)

func (f OpenerFunc) Open(ctx context.Context, path string) (Source, error) {
	return f(ctx, path)
}

// Frames returns a single-use sequence over the remaining frames of src.
// Iteration ends at end of stream; any other error is yielded once and
// ends the sequence.
func Frames(src Source) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		for {
			frame, err := src.Next()
			if errors.Is(err, ErrEndOfStream) {
				return
			}
			if err != nil {
				yield(Frame{}, err)
				return
			}
			if !yield(frame, nil) {
				return
			}
		}
	}
}
