/**
 * Tesseract OCR
 *
 * Local, offline recognition through gosseract. One client is created per
 * run and reused for every crop.
 */

package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// DefaultPageSegMode is Tesseract's fully automatic segmentation.
const DefaultPageSegMode = int(gosseract.PSM_AUTO)

// Config holds Tesseract configuration
type Config struct {
	Languages      []string
	PageSegMode    int
	Whitelist      string
	TessdataPrefix string
}

// Recognizer performs OCR using Tesseract. Not safe for concurrent use.
type Recognizer struct {
	client *gosseract.Client
	config Config
}

// New creates a Tesseract recognizer
func New(cfg *Config) (*Recognizer, error) {
	c := Config{PageSegMode: DefaultPageSegMode}
	if cfg != nil {
		c = *cfg
	}
	if len(c.Languages) == 0 {
		c.Languages = []string{"eng"}
	}

	client := gosseract.NewClient()

	if c.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(c.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}

	if err := client.SetLanguage(c.Languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set languages %v: %w", c.Languages, err)
	}

	if err := client.SetPageSegMode(gosseract.PageSegMode(c.PageSegMode)); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode %d: %w", c.PageSegMode, err)
	}

	if c.Whitelist != "" {
		if err := client.SetWhitelist(c.Whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set whitelist: %w", err)
		}
	}

	return &Recognizer{client: client, config: c}, nil
}

// Recognize runs Tesseract on img. Empty images give "" without touching
// the engine.
func (t *Recognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract OCR failed: %w", err)
	}

	return text, nil
}

// Variant describes the settings that affect recognized text.
func (t *Recognizer) Variant() string {
	return fmt.Sprintf("tesseract|%s|psm=%d|wl=%s",
		strings.Join(t.config.Languages, "+"), t.config.PageSegMode, t.config.Whitelist)
}

// Close releases the Tesseract client.
func (t *Recognizer) Close() error {
	return t.client.Close()
}
