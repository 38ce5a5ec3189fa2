package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"shortsfactory/internal/media"
)

// Result holds the subset of ffprobe output the pipeline reads.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

type Stream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
}

type Format struct {
	Duration string `json:"duration"`
}

// Client runs ffprobe through a replaceable runner.
type Client struct {
	Binary string
	Run    media.Runner
}

// New builds a client; an empty binary means "ffprobe" on PATH.
func New(binary string, run media.Runner) *Client {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	return &Client{Binary: binary, Run: media.OrDefault(run)}
}

// Inspect asks ffprobe for stream types and the container duration of path.
func (c *Client) Inspect(ctx context.Context, path string) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}
	output, err := c.Run(ctx, c.Binary,
		"-v", "error",
		"-show_entries", "format=duration:stream=codec_type,codec_name",
		"-of", "json",
		"--", path,
	)
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: decode output: %w", err)
	}
	return result, nil
}

// HasAudio reports whether any stream is an audio track.
func (r Result) HasAudio() bool {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			return true
		}
	}
	return false
}

// Duration returns the container duration in seconds. ok is false when the
// value is missing, unparsable, or not a positive finite number.
func (r Result) Duration() (seconds float64, ok bool) {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(r.Format.Duration), 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return 0, false
	}
	return seconds, true
}
