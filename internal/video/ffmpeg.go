/**
 * FFmpeg-backed Frame Source
 *
 * Decodes the first video stream of a file into raw bgr24 frames piped over
 * ffmpeg's stdout. Stream metadata (size, frame rate) comes from ffprobe.
 */

package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	apperrors "github.com/adverant/nexus/frame-ocr/internal/errors"
	"github.com/adverant/nexus/frame-ocr/internal/logging"
)

// FFmpegConfig holds decoder binary locations
type FFmpegConfig struct {
	FFmpegPath  string
	FFprobePath string
	Logger      *logging.Logger
}

// FFmpegOpener opens FFmpegSources. It implements Opener.
type FFmpegOpener struct {
	Config *FFmpegConfig
}

func (o *FFmpegOpener) Open(ctx context.Context, path string) (Source, error) {
	src, err := Open(ctx, path, o.Config)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// CheckSource reports whether path names an existing regular file.
func CheckSource(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperrors.NewSourceNotFoundError(path, err)
		}
		return apperrors.NewSourceOpenError(path, err)
	}
	if fi.IsDir() {
		return apperrors.NewSourceOpenError(path, fmt.Errorf("is a directory"))
	}
	return nil
}

// FFmpegSource is a Source reading raw frames from an ffmpeg child process.
type FFmpegSource struct {
	path   string
	info   *StreamInfo
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdout io.ReadCloser
	stderr *limitedBuffer
	reader *rawFrameReader
	logger *logging.Logger

	closeOnce sync.Once
	waited    bool
	waitErr   error
}

// Open probes path and starts decoding it. Nothing is left running when an
// error is returned.
func Open(ctx context.Context, path string, cfg *FFmpegConfig) (*FFmpegSource, error) {
	if cfg == nil {
		cfg = &FFmpegConfig{}
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	if err := CheckSource(path); err != nil {
		return nil, err
	}

	info, err := Probe(ctx, cfg.FFprobePath, path)
	if err != nil {
		return nil, apperrors.NewSourceOpenError(path, err)
	}

	logger.Debug("Probed video stream",
		"path", path,
		"codec", info.CodecName,
		"width", info.Width,
		"height", info.Height,
		"rotation", info.Rotation,
		"fps", info.FrameRate,
		"declared_frames", info.FrameCount)

	// -fps_mode passthrough keeps every decoded frame exactly once, so the
	// pipe index equals the decoder's frame index.
	args := []string{
		"-v", "error",
		"-nostdin",
		"-i", path,
		"-map", "0:v:0",
		"-fps_mode", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-",
	}

	procCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(procCtx, cfg.FFmpegPath, args...)
	stderr := &limitedBuffer{limit: 8 << 10}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, apperrors.NewSourceOpenError(path, fmt.Errorf("failed to create ffmpeg pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, apperrors.NewSourceOpenError(path, fmt.Errorf("failed to start ffmpeg: %w", err))
	}

	return &FFmpegSource{
		path:   path,
		info:   info,
		cmd:    cmd,
		cancel: cancel,
		stdout: stdout,
		stderr: stderr,
		reader: newRawFrameReader(stdout, info.Width, info.Height),
		logger: logger,
	}, nil
}

// Info returns the probed stream metadata.
func (s *FFmpegSource) Info() *StreamInfo {
	return s.info
}

func (s *FFmpegSource) FrameRate() float64 {
	return s.info.FrameRate
}

func (s *FFmpegSource) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.info.Width, s.info.Height)
}

func (s *FFmpegSource) Next() (Frame, error) {
	frame, err := s.reader.next()
	if err == nil {
		return frame, nil
	}

	if errors.Is(err, ErrEndOfStream) {
		// A clean pipe close can still hide a decoder failure; the exit
		// status decides.
		if werr := s.wait(); werr != nil {
			return Frame{}, apperrors.NewDecodeError(s.reader.index, s.describe(werr))
		}
		return Frame{}, ErrEndOfStream
	}

	return Frame{}, apperrors.NewDecodeError(s.reader.index, s.describe(err))
}

func (s *FFmpegSource) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.stdout.Close()
		if werr := s.wait(); werr != nil && !s.reader.done {
			// Killed before end of stream is the normal early-exit path.
			s.logger.Debug("ffmpeg stopped before end of stream", "path", s.path, "error", werr)
		}
	})
	return nil
}

func (s *FFmpegSource) wait() error {
	if s.waited {
		return s.waitErr
	}
	s.waited = true
	s.waitErr = s.cmd.Wait()
	return s.waitErr
}

func (s *FFmpegSource) describe(err error) error {
	if msg := strings.TrimSpace(s.stderr.String()); msg != "" {
		return fmt.Errorf("%w (ffmpeg: %s)", err, msg)
	}
	return err
}

// rawFrameReader splits a stream of packed bgr24 frames.
type rawFrameReader struct {
	r     io.Reader
	buf   *BGR
	index int
	done  bool
}

func newRawFrameReader(r io.Reader, width, height int) *rawFrameReader {
	return &rawFrameReader{
		r:   r,
		buf: NewBGR(image.Rect(0, 0, width, height)),
	}
}

// next fills the shared frame buffer with the next frame.
func (fr *rawFrameReader) next() (Frame, error) {
	if fr.done {
		return Frame{}, ErrEndOfStream
	}

	_, err := io.ReadFull(fr.r, fr.buf.Pix)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		fr.done = true
		return Frame{}, ErrEndOfStream
	case errors.Is(err, io.ErrUnexpectedEOF):
		fr.done = true
		return Frame{}, fmt.Errorf("truncated frame: %w", err)
	default:
		return Frame{}, fmt.Errorf("failed to read frame: %w", err)
	}

	frame := Frame{Index: fr.index, Image: fr.buf}
	fr.index++
	return frame, nil
}

// limitedBuffer keeps the first limit bytes written to it.
type limitedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
