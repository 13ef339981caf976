package video

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// StreamInfo describes the first video stream of a file.
type StreamInfo struct {
	// Width and Height are the display size, which is what ffmpeg emits
	// with autorotation on.
	Width     int
	Height    int
	FrameRate float64
	// Rotation is the display rotation in degrees, normalised to 0, 90,
	// 180 or 270.
	Rotation int
	// FrameCount is the container's declared frame count, 0 when unknown.
	FrameCount int
	CodecName  string
}

type probeStream struct {
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
	NbFrames     string `json:"nb_frames,omitempty"`
	Tags         struct {
		Rotate string `json:"rotate"`
	} `json:"tags"`
	SideDataList []probeSideData `json:"side_data_list"`
}

type probeSideData struct {
	SideDataType string   `json:"side_data_type"`
	Rotation     *float64 `json:"rotation"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
}

// Probe reads stream metadata for the first video stream of path using ffprobe.
func Probe(ctx context.Context, ffprobePath string, path string) (*StreamInfo, error) {
	if path == "" {
		return nil, fmt.Errorf("source path cannot be empty")
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name,width,height,avg_frame_rate,r_frame_rate,nb_frames:stream_tags=rotate:stream_side_data=rotation",
		"-print_format", "json",
		path,
	}

	cmd := exec.CommandContext(ctx, ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffprobe failed: %w (output: %s)", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeOutput(output)
}

func parseProbeOutput(output []byte) (*StreamInfo, error) {
	var result probeOutput
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe JSON output: %w", err)
	}

	if len(result.Streams) == 0 {
		return nil, fmt.Errorf("no video stream found")
	}
	s := result.Streams[0]

	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("invalid frame dimensions %dx%d", s.Width, s.Height)
	}

	// avg_frame_rate is what OpenCV-style readers report; r_frame_rate is
	// the fallback for streams that leave it at 0/0.
	fps, err := parseRational(s.AvgFrameRate)
	if err != nil || fps <= 0 {
		fps, err = parseRational(s.RFrameRate)
		if err != nil {
			return nil, fmt.Errorf("failed to parse frame rate: %w", err)
		}
	}
	if fps <= 0 {
		return nil, fmt.Errorf("stream reports no usable frame rate (avg=%q, r=%q)", s.AvgFrameRate, s.RFrameRate)
	}

	info := &StreamInfo{
		Width:     s.Width,
		Height:    s.Height,
		FrameRate: fps,
		Rotation:  s.rotation(),
		CodecName: s.CodecName,
	}
	if info.Rotation%180 != 0 {
		info.Width, info.Height = info.Height, info.Width
	}
	if n, err := strconv.Atoi(s.NbFrames); err == nil && n > 0 {
		info.FrameCount = n
	}

	return info, nil
}

// rotation prefers the display matrix side data over the legacy rotate tag.
func (s probeStream) rotation() int {
	deg := 0.0
	found := false
	for _, sd := range s.SideDataList {
		if sd.Rotation != nil {
			deg, found = *sd.Rotation, true
			break
		}
	}
	if !found && s.Tags.Rotate != "" {
		if v, err := strconv.ParseFloat(s.Tags.Rotate, 64); err == nil {
			deg = v
		}
	}

	r := int(math.Round(deg/90)) * 90 % 360
	if r < 0 {
		r += 360
	}
	return r
}

// parseRational parses ffprobe rates such as "30000/1001" or "25".
func parseRational(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty rate")
	}

	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rate %q: %w", s, err)
	}
	if !found {
		return n, nil
	}

	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rate %q: %w", s, err)
	}
	if d == 0 {
		return 0, nil
	}
	return n / d, nil
}
