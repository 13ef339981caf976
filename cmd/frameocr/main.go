/**
 * frameocr - keyframe text extraction from recorded video
 *
 * Samples every Nth frame of a video, crops the configured text and
 * in-game time regions, runs Tesseract on each crop and writes the
 * timestamped results as a JSON document.
 *
 * Collaborators:
 * - ffprobe / ffmpeg for stream metadata and frame decoding
 * - Tesseract (gosseract) for recognition
 * - Redis (optional) to cache recognized text for repeated crops
 * - PostgreSQL (optional) to archive runs
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/frame-ocr/internal/config"
	apperrors "github.com/adverant/nexus/frame-ocr/internal/errors"
	"github.com/adverant/nexus/frame-ocr/internal/logging"
	"github.com/adverant/nexus/frame-ocr/internal/ocr"
	"github.com/adverant/nexus/frame-ocr/internal/ocr/tesseract"
	"github.com/adverant/nexus/frame-ocr/internal/pipeline"
	"github.com/adverant/nexus/frame-ocr/internal/storage"
	"github.com/adverant/nexus/frame-ocr/internal/video"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	logger := logging.NewLoggerTo(stderr, "frameocr")

	// Load environment variables
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Could not load .env file", "error", err)
	}

	// Load configuration
	cfg, err := config.Load(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return fail(logger, stderr, err)
	}
	logger.SetDebug(cfg.Verbose)

	// Nothing is acquired for a source that is not there
	if err := video.CheckSource(cfg.InputPath); err != nil {
		return fail(logger, stderr, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Tesseract
	tess, err := tesseract.New(&tesseract.Config{
		Languages:      cfg.Languages,
		PageSegMode:    cfg.PageSegMode,
		Whitelist:      cfg.Whitelist,
		TessdataPrefix: cfg.TessdataPrefix,
	})
	if err != nil {
		return fail(logger, stderr, fmt.Errorf("failed to initialize Tesseract: %w", err))
	}
	defer tess.Close()

	var recognizer ocr.Recognizer = tess

	// Recognition cache (optional, non-fatal)
	var cache *ocr.CachedRecognizer
	if cfg.RedisURL != "" {
		cache, err = ocr.NewCachedRecognizer(ctx, tess, &ocr.CacheConfig{
			RedisURL: cfg.RedisURL,
			TTL:      cfg.CacheTTL,
			Variant:  tess.Variant(),
			Logger:   logger.With("cache"),
		})
		if err != nil {
			logger.Warn("Recognition cache disabled", "error", err)
		} else {
			defer cache.Close()
			recognizer = cache
			logger.Debug("Recognition cache enabled", "ttl", cfg.CacheTTL)
		}
	}

	// Run archive (optional, fatal when requested but unavailable)
	var archive storage.Archive
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresClient(ctx, cfg.DatabaseURL)
		if err != nil {
			return fail(logger, stderr, apperrors.NewArchiveError("", err))
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return fail(logger, stderr, apperrors.NewArchiveError("", err))
		}
		archive = pg
	}
	storageManager := storage.NewStorageManager(storage.NewJSONWriter(), archive, logger.With("storage"))
	defer storageManager.Close()

	opener := &video.FFmpegOpener{Config: &video.FFmpegConfig{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Logger:      logger.With("video"),
	}}

	seq, err := pipeline.New(opener, recognizer, logger.With("pipeline")).Run(ctx, cfg)
	if err != nil {
		return fail(logger, stderr, err)
	}

	if cache != nil {
		stats := cache.Stats()
		logger.Debug("Recognition cache", "hits", stats.Hits, "misses", stats.Misses, "errors", stats.Errors)
	}

	if err := storageManager.Persist(ctx, cfg.OutputPath, seq); err != nil {
		return fail(logger, stderr, err)
	}

	fmt.Fprintf(stdout, "OCR results saved to %s\n", cfg.OutputPath)
	return 0
}

func fail(logger *logging.Logger, stderr io.Writer, err error) int {
	var pe *apperrors.PipelineError
	if errors.As(err, &pe) {
		logger.Debug("Failure details", logging.Fields(pe.ToMap())...)
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}
