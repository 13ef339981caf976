/**
 * Extraction Pipeline
 *
 * One forward pass over a video: decode every frame, sample every Nth,
 * crop the configured regions from the sampled frame, recognize each crop,
 * and append one record per sampled frame. Strictly sequential.
 */

package pipeline

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/frame-ocr/internal/config"
	apperrors "github.com/adverant/nexus/frame-ocr/internal/errors"
	"github.com/adverant/nexus/frame-ocr/internal/logging"
	"github.com/adverant/nexus/frame-ocr/internal/ocr"
	"github.com/adverant/nexus/frame-ocr/internal/sampler"
	"github.com/adverant/nexus/frame-ocr/internal/video"
)

// Pipeline extracts timestamped text from a video.
type Pipeline struct {
	opener     video.Opener
	recognizer ocr.Recognizer
	logger     *logging.Logger
}

// New creates a pipeline. A nil logger discards output.
func New(opener video.Opener, recognizer ocr.Recognizer, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pipeline{
		opener:     opener,
		recognizer: recognizer,
		logger:     logger,
	}
}

// Run performs one extraction pass. The source is closed on every return
// path. Nothing is persisted; see storage.
func (p *Pipeline) Run(ctx context.Context, cfg *config.Config) (*ResultSequence, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s, err := sampler.New(cfg.FrameInterval)
	if err != nil {
		return nil, apperrors.NewConfigurationError("frame_interval", err.Error())
	}

	runID := uuid.NewString()
	started := time.Now()
	regions := cfg.Regions()
	policy := cfg.ErrorPolicy()

	p.logger.Debug("Starting extraction",
		"run_id", runID,
		"input", cfg.InputPath,
		"interval", cfg.FrameInterval,
		"regions", describeRegions(regions))

	src, err := p.opener.Open(ctx, cfg.InputPath)
	if err != nil {
		return nil, apperrors.WithRunID(err, runID)
	}
	defer src.Close()

	fps := src.FrameRate()
	if fps <= 0 {
		return nil, apperrors.WithRunID(apperrors.NewSourceOpenError(cfg.InputPath, stderrors.New("stream reports no frame rate")), runID)
	}

	asm := newAssembler(regions.Has(sampler.RegionTime))
	decoded := 0

	for frame, err := range video.Frames(src) {
		if err != nil {
			if apperrors.CodeOf(err) == "" {
				err = apperrors.NewDecodeError(decoded, err)
			}
			return nil, apperrors.WithRunID(err, runID)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		decoded++

		if !s.IsKeyframe(frame.Index) {
			continue
		}

		texts := make(map[string]string, len(regions))
		for _, slot := range regions {
			text, err := p.recognize(ctx, frame, slot, policy)
			if err != nil {
				return nil, apperrors.WithRunID(err, runID)
			}
			texts[slot.Name] = text
		}

		ts := sampler.Timestamp(frame.Index, fps)
		asm.add(frame.Index, ts, texts[sampler.RegionText], texts[sampler.RegionTime])

		p.logger.Debug("Sampled frame",
			"frame", frame.Index,
			"timestamp", ts,
			"text_len", len(texts[sampler.RegionText]))
	}

	seq := &ResultSequence{
		RunID:         runID,
		Source:        cfg.InputPath,
		FrameRate:     fps,
		FrameInterval: cfg.FrameInterval,
		FramesDecoded: decoded,
		HasIngameTime: asm.withIngameTime,
		Records:       asm.records,
		StartedAt:     started,
		FinishedAt:    time.Now(),
	}

	p.logger.Debug("Extraction complete",
		"run_id", runID,
		"frames_decoded", decoded,
		"records", len(seq.Records),
		"fps", fps,
		"elapsed", seq.FinishedAt.Sub(started).Round(time.Millisecond))

	return seq, nil
}

// recognize crops one slot from the frame and returns its trimmed text.
func (p *Pipeline) recognize(ctx context.Context, frame video.Frame, slot sampler.Slot, policy ocr.ErrorPolicy) (string, error) {
	crop := sampler.Crop(frame.Image, slot.Region)
	if crop.Empty() {
		return "", nil
	}

	text, err := p.recognizer.Recognize(ctx, sampler.ToRGB(crop))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if policy == ocr.PolicyEmpty {
			p.logger.Warn("OCR failed, recording empty text",
				"frame", frame.Index,
				"region", slot.Name,
				"error", err)
			return "", nil
		}
		return "", apperrors.NewOCRFailedError(frame.Index, slot.Name, err)
	}

	return strings.TrimSpace(text), nil
}

func describeRegions(regions sampler.Regions) string {
	parts := make([]string, 0, len(regions))
	for _, slot := range regions {
		if slot.Region == nil {
			parts = append(parts, slot.Name+"=full")
			continue
		}
		parts = append(parts, slot.Name+"="+slot.Region.String())
	}
	return strings.Join(parts, " ")
}
