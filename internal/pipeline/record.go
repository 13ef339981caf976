package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is the recognized text of one keyframe.
type Record struct {
	FrameIndex int     `json:"-"`
	Timestamp  float64 `json:"timestamp"`
	Text       string  `json:"text"`
	// IngameTime is set on every record when a time region is configured
	// and on none otherwise.
	IngameTime *string `json:"ingame_time,omitempty"`
}

// MarshalJSON writes the timestamp as a decimal that always carries a
// fractional part, so whole seconds read 4.0 rather than 4.
func (r Record) MarshalJSON() ([]byte, error) {
	doc := struct {
		Timestamp  json.RawMessage `json:"timestamp"`
		Text       string          `json:"text"`
		IngameTime *string         `json:"ingame_time,omitempty"`
	}{
		Timestamp:  json.RawMessage(formatSeconds(r.Timestamp)),
		Text:       r.Text,
		IngameTime: r.IngameTime,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func formatSeconds(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// ResultSequence is the ordered output of one run. Records are in frame
// order and are not modified once Run returns.
type ResultSequence struct {
	RunID         string
	Source        string
	FrameRate     float64
	FrameInterval int
	FramesDecoded int
	HasIngameTime bool
	Records       []Record
	StartedAt     time.Time
	FinishedAt    time.Time
}

// MarshalDocument renders the records as an indented JSON array. Non-ASCII
// text and HTML characters are written literally.
func (s *ResultSequence) MarshalDocument() ([]byte, error) {
	records := s.Records
	if records == nil {
		records = []Record{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("failed to encode records: %w", err)
	}

	return buf.Bytes(), nil
}

// assembler accumulates records in the order keyframes are visited.
type assembler struct {
	withIngameTime bool
	records        []Record
}

func newAssembler(withIngameTime bool) *assembler {
	return &assembler{
		withIngameTime: withIngameTime,
		records:        []Record{},
	}
}

func (a *assembler) add(frameIndex int, timestamp float64, text, ingameTime string) {
	rec := Record{
		FrameIndex: frameIndex,
		Timestamp:  timestamp,
		Text:       text,
	}
	if a.withIngameTime {
		rec.IngameTime = &ingameTime
	}
	a.records = append(a.records, rec)
}
