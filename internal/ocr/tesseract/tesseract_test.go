package tesseract

import (
	"context"
	"image"
	"strings"
	"testing"
)

func TestDefaults(t *testing.T) {
	rec, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rec.Close()

	if got := rec.Variant(); !strings.HasPrefix(got, "tesseract|eng|psm=3|") {
		t.Fatalf("Variant() = %q", got)
	}
}

func TestRecognizeEmptyImage(t *testing.T) {
	rec, err := New(&Config{Languages: []string{"eng"}, PageSegMode: 7})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rec.Close()

	text, err := rec.Recognize(context.Background(), image.NewNRGBA(image.Rectangle{}))
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if text != "" {
		t.Fatalf("Recognize(empty) = %q, want empty", text)
	}
}

func TestRecognizeCancelledContext(t *testing.T) {
	rec, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rec.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := rec.Recognize(ctx, image.NewNRGBA(image.Rect(0, 0, 4, 4))); err == nil {
		t.Fatalf("expected context error")
	}
}
