package sampler

import (
	"image"
	"testing"

	"github.com/adverant/nexus/frame-ocr/internal/video"
)

func TestNewRejectsNonPositiveInterval(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := New(n); err == nil {
			t.Errorf("New(%d): expected error", n)
		}
	}
}

func TestIsKeyframe(t *testing.T) {
	s, err := New(30)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := map[int]bool{0: true, 1: false, 29: false, 30: true, 31: false, 60: true}
	for idx, want := range tests {
		if got := s.IsKeyframe(idx); got != want {
			t.Errorf("IsKeyframe(%d) = %v, want %v", idx, got, want)
		}
	}
}

func TestKeyframeCount(t *testing.T) {
	tests := []struct {
		interval, total, want int
	}{
		{30, 0, 0},
		{30, 1, 1},
		{30, 30, 1},
		{30, 31, 2},
		{30, 90, 3},
		{240, 100, 1},
		{1, 7, 7},
	}

	for _, tt := range tests {
		s := &Sampler{Interval: tt.interval}
		got := s.KeyframeCount(tt.total)

		brute := 0
		for i := 0; i < tt.total; i++ {
			if s.IsKeyframe(i) {
				brute++
			}
		}
		if got != tt.want || got != brute {
			t.Errorf("KeyframeCount(interval=%d, total=%d) = %d, want %d (brute %d)",
				tt.interval, tt.total, got, tt.want, brute)
		}
	}
}

func TestTimestamp(t *testing.T) {
	tests := []struct {
		index int
		fps   float64
		want  float64
	}{
		{0, 30, 0},
		{30, 30, 1},
		{240, 60, 4},
		{30, 29.97, 1},
		{45, 29.97, 1.5},
		{1, 3, 0.33},
		{2, 3, 0.67},
		{100, 30000.0 / 1001.0, 3.34},
	}

	for _, tt := range tests {
		if got := Timestamp(tt.index, tt.fps); got != tt.want {
			t.Errorf("Timestamp(%d, %v) = %v, want %v", tt.index, tt.fps, got, tt.want)
		}
	}
}

func TestParseRegion(t *testing.T) {
	r, err := ParseRegion("2600, 0, 472, 400")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != (Region{X: 2600, Y: 0, Width: 472, Height: 400}) {
		t.Fatalf("unexpected region: %+v", r)
	}

	if _, err := ParseRegion("10,10,0,5"); err != nil {
		t.Fatalf("zero width must be accepted: %v", err)
	}

	for _, bad := range []string{"", "1,2,3", "1,2,3,4,5", "a,b,c,d", "-1,0,10,10", "0,0,-5,10"} {
		if _, err := ParseRegion(bad); err == nil {
			t.Errorf("ParseRegion(%q): expected error", bad)
		}
	}
}

func TestNewRegions(t *testing.T) {
	text := &Region{X: 1, Y: 1, Width: 2, Height: 2}

	only := NewRegions(text, nil)
	if len(only) != 1 || only[0].Name != RegionText || only.Has(RegionTime) {
		t.Fatalf("unexpected slots: %+v", only)
	}

	both := NewRegions(nil, &Region{Width: 1, Height: 1})
	if len(both) != 2 || both[0].Name != RegionText || both[1].Name != RegionTime {
		t.Fatalf("unexpected slots: %+v", both)
	}
	if both[0].Region != nil {
		t.Fatalf("text slot should default to the full frame")
	}
}

func testFrame(w, h int) *video.BGR {
	img := video.NewBGR(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, uint8(x), uint8(y), uint8(x+y))
		}
	}
	return img
}

func TestCrop(t *testing.T) {
	frame := testFrame(8, 6)

	t.Run("nil region is the full frame", func(t *testing.T) {
		if got := Crop(frame, nil); got.Bounds() != frame.Bounds() {
			t.Fatalf("Bounds() = %v, want %v", got.Bounds(), frame.Bounds())
		}
	})

	t.Run("rows y..y+h and columns x..x+w", func(t *testing.T) {
		got := Crop(frame, &Region{X: 2, Y: 1, Width: 3, Height: 4})
		if got.Bounds() != image.Rect(2, 1, 5, 5) {
			t.Fatalf("Bounds() = %v", got.Bounds())
		}
		rgb := ToRGB(got)
		if rgb.Bounds().Dx() != 3 || rgb.Bounds().Dy() != 4 {
			t.Fatalf("RGB size = %v", rgb.Bounds())
		}
		// top-left of the crop is frame pixel (2,1)
		if px := rgb.NRGBAAt(0, 0); px.B != 2 || px.G != 1 || px.R != 3 {
			t.Fatalf("unexpected top-left pixel %v", px)
		}
	})

	t.Run("empty crops", func(t *testing.T) {
		cases := map[string]Region{
			"zero width":  {X: 1, Y: 1, Width: 0, Height: 3},
			"zero height": {X: 1, Y: 1, Width: 3, Height: 0},
			"outside":     {X: 100, Y: 100, Width: 5, Height: 5},
		}
		for name, r := range cases {
			r := r
			if got := Crop(frame, &r); !got.Empty() {
				t.Errorf("%s: expected empty crop, got %v", name, got.Bounds())
			}
		}
	})

	t.Run("crops are independent", func(t *testing.T) {
		text := Region{X: 0, Y: 0, Width: 4, Height: 3}
		time := Region{X: 2, Y: 2, Width: 4, Height: 3}

		alone := ToRGB(Crop(frame, &text))
		_ = ToRGB(Crop(frame, &time))
		after := ToRGB(Crop(frame, &text))

		if string(alone.Pix) != string(after.Pix) {
			t.Fatalf("cropping another region changed the text crop")
		}
	})
}

func TestToRGBIsLosslessReorder(t *testing.T) {
	frame := testFrame(5, 4)
	rgb := ToRGB(frame)

	for y := 0; y < 4; y++ {
		for x := 0; x < 5; x++ {
			px := rgb.NRGBAAt(x, y)
			if px.R != uint8(x+y) || px.G != uint8(y) || px.B != uint8(x) || px.A != 0xff {
				t.Fatalf("pixel (%d,%d) = %v", x, y, px)
			}
		}
	}

	if empty := ToRGB(&video.BGR{}); !empty.Bounds().Empty() {
		t.Fatalf("expected empty image, got %v", empty.Bounds())
	}
}
