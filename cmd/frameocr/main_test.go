package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolateEnv blanks the variables the CLI reads so the host environment
// cannot leak into a test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"FRAMEOCR_CONFIG", "FRAMEOCR_INPUT", "FRAMEOCR_OUTPUT", "FRAMEOCR_FRAME_INTERVAL",
		"FRAMEOCR_TEXT_REGION", "FRAMEOCR_TIME_REGION", "FRAMEOCR_OCR_ERRORS",
		"FRAMEOCR_CACHE_TTL", "FRAMEOCR_VERBOSE", "TESSERACT_LANGUAGES", "TESSERACT_PSM",
		"TESSERACT_WHITELIST", "TESSDATA_PREFIX", "REDIS_URL", "DATABASE_URL",
		"FFMPEG_PATH", "FFPROBE_PATH",
	} {
		t.Setenv(key, "")
	}
}

func TestMissingSourceFailsBeforeServices(t *testing.T) {
	isolateEnv(t)
	// Nothing listens here; reaching the archive would fail with ARCHIVE_FAILED.
	t.Setenv("DATABASE_URL", "postgres://frameocr@127.0.0.1:1/frameocr?sslmode=disable&connect_timeout=1")
	t.Setenv("REDIS_URL", "redis://127.0.0.1:1/0")

	dir := t.TempDir()
	output := filepath.Join(dir, "ocr_output.json")

	var stdout, stderr bytes.Buffer
	code := run([]string{
		"-output", output,
		"-tessdata", filepath.Join(dir, "no-tessdata"),
		filepath.Join(dir, "nonexistent.mp4"),
	}, &stdout, &stderr)

	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "SOURCE_NOT_FOUND") {
		t.Fatalf("stderr does not report SOURCE_NOT_FOUND:\n%s", stderr.String())
	}
	if strings.Contains(stderr.String(), "ARCHIVE_FAILED") || strings.Contains(stderr.String(), "Tesseract") {
		t.Fatalf("services were initialized before the source check:\n%s", stderr.String())
	}
	if stdout.Len() != 0 {
		t.Fatalf("unexpected stdout: %q", stdout.String())
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Fatalf("output file created: %v", err)
	}
}

func TestConfigurationErrorExitCode(t *testing.T) {
	isolateEnv(t)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-interval", "0", "gameplay.mp4"}, &stdout, &stderr)

	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "CONFIGURATION_INVALID") {
		t.Fatalf("stderr does not report CONFIGURATION_INVALID:\n%s", stderr.String())
	}
}

func TestHelpExitsCleanly(t *testing.T) {
	isolateEnv(t)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-h"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stderr.String(), "Usage: frameocr") {
		t.Fatalf("usage missing:\n%s", stderr.String())
	}
}
