package video

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/adverant/nexus/frame-ocr/internal/errors"
)

func TestBGRAtReordersChannels(t *testing.T) {
	img := NewBGR(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, 10, 20, 30)

	got := img.At(1, 1).(color.RGBA)
	want := color.RGBA{R: 30, G: 20, B: 10, A: 0xff}
	if got != want {
		t.Fatalf("At(1,1) = %v, want %v", got, want)
	}
}

func TestBGRSubImage(t *testing.T) {
	img := NewBGR(image.Rect(0, 0, 4, 4))
	img.Set(2, 1, 1, 2, 3)

	tests := []struct {
		name      string
		rect      image.Rectangle
		wantEmpty bool
		wantRect  image.Rectangle
	}{
		{"inside", image.Rect(1, 1, 3, 3), false, image.Rect(1, 1, 3, 3)},
		{"clipped", image.Rect(2, 2, 10, 10), false, image.Rect(2, 2, 4, 4)},
		{"outside", image.Rect(5, 5, 8, 8), true, image.Rectangle{}},
		{"zero width", image.Rect(1, 1, 1, 3), true, image.Rectangle{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := img.SubImage(tt.rect)
			if sub.Empty() != tt.wantEmpty {
				t.Fatalf("Empty() = %v, want %v", sub.Empty(), tt.wantEmpty)
			}
			if !tt.wantEmpty && sub.Bounds() != tt.wantRect {
				t.Fatalf("Bounds() = %v, want %v", sub.Bounds(), tt.wantRect)
			}
		})
	}

	sub := img.SubImage(image.Rect(1, 1, 3, 3))
	if got := sub.At(2, 1).(color.RGBA); got.R != 3 || got.B != 1 {
		t.Fatalf("SubImage does not share pixels with parent: %v", got)
	}
}

func TestParseRational(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		err  bool
	}{
		{"30/1", 30, false},
		{"30000/1001", 30000.0 / 1001.0, false},
		{"25", 25, false},
		{"0/0", 0, false},
		{"", 0, true},
		{"abc/1", 0, true},
	}

	for _, tt := range tests {
		got, err := parseRational(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("parseRational(%q) error = %v, want error %v", tt.in, err, tt.err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseRational(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseProbeOutput(t *testing.T) {
	t.Run("avg frame rate preferred", func(t *testing.T) {
		out := []byte(`{"streams":[{"codec_name":"h264","width":3072,"height":1920,
			"avg_frame_rate":"60/1","r_frame_rate":"120/1","nb_frames":"3600"}]}`)
		info, err := parseProbeOutput(out)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.FrameRate != 60 || info.Width != 3072 || info.Height != 1920 || info.FrameCount != 3600 {
			t.Fatalf("unexpected info: %+v", info)
		}
	})

	t.Run("falls back to r_frame_rate", func(t *testing.T) {
		out := []byte(`{"streams":[{"width":640,"height":480,"avg_frame_rate":"0/0","r_frame_rate":"24/1"}]}`)
		info, err := parseProbeOutput(out)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.FrameRate != 24 {
			t.Fatalf("FrameRate = %v, want 24", info.FrameRate)
		}
	})

	t.Run("display rotation swaps dimensions", func(t *testing.T) {
		tests := []struct {
			name          string
			out           string
			rotation      int
			width, height int
		}{
			{"display matrix -90", `{"streams":[{"width":1920,"height":1080,"avg_frame_rate":"30/1",
				"side_data_list":[{"side_data_type":"Display Matrix","rotation":-90}]}]}`, 270, 1080, 1920},
			{"display matrix 180", `{"streams":[{"width":1920,"height":1080,"avg_frame_rate":"30/1",
				"side_data_list":[{"side_data_type":"Display Matrix","rotation":180}]}]}`, 180, 1920, 1080},
			{"legacy rotate tag", `{"streams":[{"width":1280,"height":720,"avg_frame_rate":"30/1",
				"tags":{"rotate":"90"}}]}`, 90, 720, 1280},
			{"unrelated side data", `{"streams":[{"width":1280,"height":720,"avg_frame_rate":"30/1",
				"side_data_list":[{"side_data_type":"Stereo 3D"}]}]}`, 0, 1280, 720},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				info, err := parseProbeOutput([]byte(tt.out))
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if info.Rotation != tt.rotation || info.Width != tt.width || info.Height != tt.height {
					t.Fatalf("got rotation=%d %dx%d, want rotation=%d %dx%d",
						info.Rotation, info.Width, info.Height, tt.rotation, tt.width, tt.height)
				}
			})
		}
	})

	t.Run("rejects", func(t *testing.T) {
		bad := map[string]string{
			"no streams": `{"streams":[]}`,
			"no size":    `{"streams":[{"width":0,"height":0,"avg_frame_rate":"30/1"}]}`,
			"no rate":    `{"streams":[{"width":10,"height":10,"avg_frame_rate":"0/0","r_frame_rate":"0/0"}]}`,
			"not json":   `not json`,
		}
		for name, out := range bad {
			if _, err := parseProbeOutput([]byte(out)); err == nil {
				t.Errorf("%s: expected error", name)
			}
		}
	})
}

func TestRawFrameReader(t *testing.T) {
	const w, h = 2, 2
	frameSize := w * h * 3

	t.Run("splits frames and ends cleanly", func(t *testing.T) {
		data := make([]byte, frameSize*3)
		for i := range data {
			data[i] = byte(i / frameSize)
		}
		fr := newRawFrameReader(bytes.NewReader(data), w, h)

		for want := 0; want < 3; want++ {
			frame, err := fr.next()
			if err != nil {
				t.Fatalf("frame %d: unexpected error: %v", want, err)
			}
			if frame.Index != want {
				t.Fatalf("Index = %d, want %d", frame.Index, want)
			}
			if frame.Image.Pix[0] != byte(want) {
				t.Fatalf("frame %d has pixel %d", want, frame.Image.Pix[0])
			}
		}

		if _, err := fr.next(); !errors.Is(err, ErrEndOfStream) {
			t.Fatalf("expected ErrEndOfStream, got %v", err)
		}
		if _, err := fr.next(); !errors.Is(err, ErrEndOfStream) {
			t.Fatalf("expected ErrEndOfStream after end, got %v", err)
		}
	})

	t.Run("truncated trailing frame", func(t *testing.T) {
		data := make([]byte, frameSize+1)
		fr := newRawFrameReader(bytes.NewReader(data), w, h)

		if _, err := fr.next(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err := fr.next()
		if err == nil || errors.Is(err, ErrEndOfStream) {
			t.Fatalf("expected truncation error, got %v", err)
		}
	})
}

type sliceSource struct {
	frames []Frame
	pos    int
	err    error
}

func (s *sliceSource) Next() (Frame, error) {
	if s.pos >= len(s.frames) {
		if s.err != nil {
			return Frame{}, s.err
		}
		return Frame{}, ErrEndOfStream
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *sliceSource) FrameRate() float64 { return 30 }
func (s *sliceSource) Close() error       { return nil }

func TestFrames(t *testing.T) {
	newSource := func(n int) *sliceSource {
		src := &sliceSource{}
		for i := 0; i < n; i++ {
			src.frames = append(src.frames, Frame{Index: i})
		}
		return src
	}

	t.Run("yields every frame in order", func(t *testing.T) {
		var got []int
		for frame, err := range Frames(newSource(5)) {
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got = append(got, frame.Index)
		}
		if len(got) != 5 {
			t.Fatalf("got %d frames, want 5", len(got))
		}
		for i, idx := range got {
			if idx != i {
				t.Fatalf("frame %d has index %d", i, idx)
			}
		}
	})

	t.Run("not restartable", func(t *testing.T) {
		src := newSource(3)
		seq := Frames(src)
		count := 0
		for range seq {
			count++
		}
		for range seq {
			count++
		}
		if count != 3 {
			t.Fatalf("got %d frames across two passes, want 3", count)
		}
	})

	t.Run("yields decode error once", func(t *testing.T) {
		src := newSource(2)
		src.err = errors.New("boom")
		var errs int
		for _, err := range Frames(src) {
			if err != nil {
				errs++
			}
		}
		if errs != 1 {
			t.Fatalf("got %d errors, want 1", errs)
		}
	})
}

func TestOpenMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent.mp4")

	_, err := Open(context.Background(), path, nil)
	if !errors.Is(err, apperrors.ErrSourceNotFound) {
		t.Fatalf("expected SOURCE_NOT_FOUND, got %v", err)
	}
}

func TestCheckSource(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "gameplay.mp4")
	if err := os.WriteFile(file, []byte("not really video"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := CheckSource(file); err != nil {
		t.Fatalf("existing file: %v", err)
	}
	if err := CheckSource(filepath.Join(dir, "nonexistent.mp4")); !errors.Is(err, apperrors.ErrSourceNotFound) {
		t.Fatalf("expected SOURCE_NOT_FOUND, got %v", err)
	}
	if err := CheckSource(dir); !errors.Is(err, apperrors.ErrSourceOpenFailed) {
		t.Fatalf("expected SOURCE_OPEN_FAILED for a directory, got %v", err)
	}
}
