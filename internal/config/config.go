/**
 * Configuration for the frame OCR pipeline
 *
 * Precedence, lowest to highest: defaults, YAML config file, environment
 * variables (a .env file is loaded by main), command-line flags.
 */

package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/adverant/nexus/frame-ocr/internal/errors"
	"github.com/adverant/nexus/frame-ocr/internal/ocr"
	"github.com/adverant/nexus/frame-ocr/internal/sampler"
)

// DefaultOutputPath is where results go when no output is configured.
const DefaultOutputPath = "ocr_output.json"

// Config holds the parameters of one extraction run. It is built once and
// treated as read-only afterwards.
type Config struct {
	// Source and sampling
	InputPath     string          `yaml:"input"`
	FrameInterval int             `yaml:"frame_interval"`
	OutputPath    string          `yaml:"output"`
	TextRegion    *sampler.Region `yaml:"text_region"`
	TimeRegion    *sampler.Region `yaml:"time_region"`

	// Tesseract configuration
	Languages      []string `yaml:"languages"`
	PageSegMode    int      `yaml:"page_seg_mode"`
	Whitelist      string   `yaml:"whitelist"`
	TessdataPrefix string   `yaml:"tessdata_prefix"`
	OCRErrors      string   `yaml:"ocr_errors"`

	// Recognition cache (disabled when RedisURL is empty)
	RedisURL string        `yaml:"redis_url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// PostgreSQL archive (disabled when DatabaseURL is empty)
	DatabaseURL string `yaml:"database_url"`

	// Decoder binaries
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`

	Verbose bool `yaml:"verbose"`
}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() *Config {
	return &Config{
		FrameInterval: sampler.DefaultInterval,
		OutputPath:    DefaultOutputPath,
		Languages:     []string{"eng"},
		PageSegMode:   3,
		OCRErrors:     string(ocr.PolicyAbort),
		CacheTTL:      24 * time.Hour,
		FFmpegPath:    "ffmpeg",
		FFprobePath:   "ffprobe",
	}
}

// Load builds the configuration from a config file, the environment and args.
// Usage and flag parse errors are written to usage; nil discards them.
func Load(args []string, usage io.Writer) (*Config, error) {
	if usage == nil {
		usage = io.Discard
	}
	fl, err := parseFlags(args, usage)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	path := getEnvOrDefault("FRAMEOCR_CONFIG", "")
	if fl.configPath != "" {
		path = fl.configPath
	}
	if path != "" {
		cfg, err = LoadConfigFile(path)
		if err != nil {
			return nil, apperrors.NewConfigurationError("config", err.Error())
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := fl.apply(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.InputPath = getEnvOrDefault("FRAMEOCR_INPUT", c.InputPath)
	c.OutputPath = getEnvOrDefault("FRAMEOCR_OUTPUT", c.OutputPath)
	c.Whitelist = getEnvOrDefault("TESSERACT_WHITELIST", c.Whitelist)
	c.TessdataPrefix = getEnvOrDefault("TESSDATA_PREFIX", c.TessdataPrefix)
	c.OCRErrors = getEnvOrDefault("FRAMEOCR_OCR_ERRORS", c.OCRErrors)
	c.RedisURL = getEnvOrDefault("REDIS_URL", c.RedisURL)
	c.DatabaseURL = getEnvOrDefault("DATABASE_URL", c.DatabaseURL)
	c.FFmpegPath = getEnvOrDefault("FFMPEG_PATH", c.FFmpegPath)
	c.FFprobePath = getEnvOrDefault("FFPROBE_PATH", c.FFprobePath)

	if langs := os.Getenv("TESSERACT_LANGUAGES"); langs != "" {
		c.Languages = splitList(langs)
	}

	var err error
	if c.FrameInterval, err = getEnvAsIntOrDefault("FRAMEOCR_FRAME_INTERVAL", c.FrameInterval); err != nil {
		return err
	}
	if c.PageSegMode, err = getEnvAsIntOrDefault("TESSERACT_PSM", c.PageSegMode); err != nil {
		return err
	}
	if c.CacheTTL, err = getEnvAsDurationOrDefault("FRAMEOCR_CACHE_TTL", c.CacheTTL); err != nil {
		return err
	}
	if c.Verbose, err = getEnvAsBoolOrDefault("FRAMEOCR_VERBOSE", c.Verbose); err != nil {
		return err
	}
	if c.TextRegion, err = getEnvAsRegionOrDefault("FRAMEOCR_TEXT_REGION", c.TextRegion); err != nil {
		return err
	}
	if c.TimeRegion, err = getEnvAsRegionOrDefault("FRAMEOCR_TIME_REGION", c.TimeRegion); err != nil {
		return err
	}

	return nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.InputPath) == "" {
		return apperrors.NewConfigurationError("input", "is required")
	}

	if c.FrameInterval < 1 {
		return apperrors.NewConfigurationError("frame_interval", fmt.Sprintf("must be a positive integer, got %d", c.FrameInterval))
	}

	if c.OutputPath == "" {
		return apperrors.NewConfigurationError("output", "must not be empty")
	}

	if c.TextRegion != nil {
		if err := c.TextRegion.Validate(); err != nil {
			return apperrors.NewConfigurationError("text_region", err.Error())
		}
	}

	if c.TimeRegion != nil {
		if err := c.TimeRegion.Validate(); err != nil {
			return apperrors.NewConfigurationError("time_region", err.Error())
		}
	}

	if _, err := ocr.ParseErrorPolicy(c.OCRErrors); err != nil {
		return apperrors.NewConfigurationError("ocr_errors", err.Error())
	}

	if c.PageSegMode < 0 || c.PageSegMode > 13 {
		return apperrors.NewConfigurationError("page_seg_mode", fmt.Sprintf("must be between 0 and 13, got %d", c.PageSegMode))
	}

	if len(c.Languages) == 0 {
		return apperrors.NewConfigurationError("languages", "must name at least one language")
	}

	if c.CacheTTL < 0 {
		return apperrors.NewConfigurationError("cache_ttl", "must not be negative")
	}

	return nil
}

// ErrorPolicy returns the parsed OCR error policy. Validate has already
// rejected unknown names.
func (c *Config) ErrorPolicy() ocr.ErrorPolicy {
	p, _ := ocr.ParseErrorPolicy(c.OCRErrors)
	return p
}

// Regions returns the named crop slots for this run.
func (c *Config) Regions() sampler.Regions {
	return sampler.NewRegions(c.TextRegion, c.TimeRegion)
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, apperrors.NewConfigurationError(key, fmt.Sprintf("must be an integer, got %q", valueStr))
	}

	return value, nil
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, apperrors.NewConfigurationError(key, fmt.Sprintf("must be a duration, got %q", valueStr))
	}

	return value, nil
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) (bool, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, apperrors.NewConfigurationError(key, fmt.Sprintf("must be a boolean, got %q", valueStr))
	}

	return value, nil
}

func getEnvAsRegionOrDefault(key string, defaultValue *sampler.Region) (*sampler.Region, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	r, err := sampler.ParseRegion(valueStr)
	if err != nil {
		return nil, apperrors.NewConfigurationError(key, err.Error())
	}

	return &r, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '+' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
