package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	apperrors "github.com/adverant/nexus/frame-ocr/internal/errors"
	"github.com/adverant/nexus/frame-ocr/internal/sampler"
)

// flagValues holds parsed command-line flags. Only flags present on the
// command line override lower layers.
type flagValues struct {
	set        map[string]bool
	configPath string

	input      string
	output     string
	interval   int
	textRegion string
	timeRegion string

	languages string
	psm       int
	whitelist string
	tessdata  string
	ocrErrors string

	redisURL    string
	cacheTTL    time.Duration
	databaseURL string

	ffmpegPath  string
	ffprobePath string
	verbose     bool
}

func parseFlags(args []string, usage io.Writer) (*flagValues, error) {
	fl := &flagValues{set: make(map[string]bool)}

	fs := flag.NewFlagSet("frameocr", flag.ContinueOnError)
	fs.SetOutput(usage)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: frameocr [flags] [video]\n\n")
		fmt.Fprintf(fs.Output(), "Samples every Nth frame of a video, runs OCR on the configured regions\n")
		fmt.Fprintf(fs.Output(), "and writes timestamped text records as JSON.\n\nFlags:\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&fl.configPath, "config", "", "Path to a YAML config file")

	fs.StringVar(&fl.input, "input", "", "Input video file path (or first positional argument)")
	fs.StringVar(&fl.output, "output", DefaultOutputPath, "Output JSON file path")
	fs.IntVar(&fl.interval, "interval", sampler.DefaultInterval, "Process every Nth frame")
	fs.StringVar(&fl.textRegion, "text-region", "", "Text region x,y,width,height (default: full frame)")
	fs.StringVar(&fl.timeRegion, "time-region", "", "In-game time region x,y,width,height (default: none)")

	fs.StringVar(&fl.languages, "lang", "eng", "Tesseract languages, comma or plus separated")
	fs.IntVar(&fl.psm, "psm", 3, "Tesseract page segmentation mode (0-13)")
	fs.StringVar(&fl.whitelist, "whitelist", "", "Restrict recognition to these characters")
	fs.StringVar(&fl.tessdata, "tessdata", "", "Tesseract tessdata directory")
	fs.StringVar(&fl.ocrErrors, "ocr-errors", "abort", "On OCR engine failure: abort or empty")

	fs.StringVar(&fl.redisURL, "redis", "", "Redis URL for the recognition cache (default: disabled)")
	fs.DurationVar(&fl.cacheTTL, "cache-ttl", 24*time.Hour, "Recognition cache entry lifetime")
	fs.StringVar(&fl.databaseURL, "database", "", "PostgreSQL URL for archiving runs (default: disabled)")

	fs.StringVar(&fl.ffmpegPath, "ffmpeg", "ffmpeg", "ffmpeg binary")
	fs.StringVar(&fl.ffprobePath, "ffprobe", "ffprobe", "ffprobe binary")
	fs.BoolVar(&fl.verbose, "verbose", false, "Enable debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) { fl.set[f.Name] = true })

	switch rest := fs.Args(); {
	case len(rest) > 1:
		return nil, apperrors.NewConfigurationError("input", fmt.Sprintf("expects one video, got %d arguments", len(rest)))
	case len(rest) == 1:
		if fl.set["input"] {
			return nil, apperrors.NewConfigurationError("input", "given both as -input and as an argument")
		}
		fl.input = rest[0]
		fl.set["input"] = true
	}

	return fl, nil
}

func (fl *flagValues) apply(c *Config) error {
	if fl.set["input"] {
		c.InputPath = fl.input
	}
	if fl.set["output"] {
		c.OutputPath = fl.output
	}
	if fl.set["interval"] {
		c.FrameInterval = fl.interval
	}
	if fl.set["text-region"] {
		r, err := sampler.ParseRegion(fl.textRegion)
		if err != nil {
			return apperrors.NewConfigurationError("text-region", err.Error())
		}
		c.TextRegion = &r
	}
	if fl.set["time-region"] {
		r, err := sampler.ParseRegion(fl.timeRegion)
		if err != nil {
			return apperrors.NewConfigurationError("time-region", err.Error())
		}
		c.TimeRegion = &r
	}
	if fl.set["lang"] {
		c.Languages = splitList(fl.languages)
	}
	if fl.set["psm"] {
		c.PageSegMode = fl.psm
	}
	if fl.set["whitelist"] {
		c.Whitelist = fl.whitelist
	}
	if fl.set["tessdata"] {
		c.TessdataPrefix = fl.tessdata
	}
	if fl.set["ocr-errors"] {
		c.OCRErrors = fl.ocrErrors
	}
	if fl.set["redis"] {
		c.RedisURL = fl.redisURL
	}
	if fl.set["cache-ttl"] {
		c.CacheTTL = fl.cacheTTL
	}
	if fl.set["database"] {
		c.DatabaseURL = fl.databaseURL
	}
	if fl.set["ffmpeg"] {
		c.FFmpegPath = fl.ffmpegPath
	}
	if fl.set["ffprobe"] {
		c.FFprobePath = fl.ffprobePath
	}
	if fl.set["verbose"] {
		c.Verbose = fl.verbose
	}
	return nil
}
