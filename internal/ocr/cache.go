/**
 * Redis-backed recognition cache
 *
 * Gameplay overlays repeat the same pixels across many keyframes. Results
 * are cached under a fingerprint of the crop's pixels and the engine
 * settings, so identical crops skip the engine. Cache failures only cost
 * a cache miss.
 */

package ocr

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/frame-ocr/internal/logging"
)

// CacheConfig holds recognition cache configuration
type CacheConfig struct {
	RedisURL string
	TTL      time.Duration
	// Variant identifies the engine settings; results from different
	// settings never share entries.
	Variant   string
	KeyPrefix string
	Logger    *logging.Logger
}

// CacheStats counts cache outcomes for a run.
type CacheStats struct {
	Hits   int
	Misses int
	Errors int
}

// CachedRecognizer wraps a Recognizer with a Redis cache.
type CachedRecognizer struct {
	next    Recognizer
	client  redis.UniversalClient
	ttl     time.Duration
	variant string
	prefix  string
	logger  *logging.Logger
	stats   CacheStats
}

// NewCachedRecognizer connects to Redis and wraps next.
func NewCachedRecognizer(ctx context.Context, next Recognizer, cfg *CacheConfig) (*CachedRecognizer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewCachedRecognizerWithClient(next, client, cfg), nil
}

// NewCachedRecognizerWithClient wraps next using an existing client.
func NewCachedRecognizerWithClient(next Recognizer, client redis.UniversalClient, cfg *CacheConfig) *CachedRecognizer {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "frameocr:text:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &CachedRecognizer{
		next:    next,
		client:  client,
		ttl:     ttl,
		variant: cfg.Variant,
		prefix:  prefix,
		logger:  logger,
	}
}

func (c *CachedRecognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	if IsEmpty(img) {
		return "", nil
	}

	key := c.prefix + Fingerprint(img, c.variant)

	text, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		c.stats.Hits++
		return text, nil
	case err == redis.Nil:
		c.stats.Misses++
	default:
		c.stats.Errors++
		c.logger.Warn("Recognition cache read failed", "key", key, "error", err)
	}

	text, err = c.next.Recognize(ctx, img)
	if err != nil {
		return "", err
	}

	if err := c.client.Set(ctx, key, text, c.ttl).Err(); err != nil {
		c.stats.Errors++
		c.logger.Warn("Recognition cache write failed", "key", key, "error", err)
	}

	return text, nil
}

// Stats returns the cache outcomes so far.
func (c *CachedRecognizer) Stats() CacheStats {
	return c.stats
}

// Close closes the Redis client.
func (c *CachedRecognizer) Close() error {
	return c.client.Close()
}

// Fingerprint hashes an image's size and RGBA pixels together with variant.
func Fingerprint(img image.Image, variant string) string {
	n := toNRGBA(img)
	b := n.Bounds()

	h := xxhash.New()
	var hdr [16]byte
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(b.Dx()))
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(b.Dy()))
	h.Write(hdr[:])
	h.WriteString(variant)
	h.Write([]byte{0})
	for y := 0; y < b.Dy(); y++ {
		h.Write(n.Pix[y*n.Stride : y*n.Stride+b.Dx()*4])
	}

	return fmt.Sprintf("%016x", h.Sum64())
}
