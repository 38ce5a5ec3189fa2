// Package ffmpeg builds and runs the three ffmpeg invocations the pipeline
// needs: audio extraction for speech recognition, the split-screen composite,
// and subtitle burn-in.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"shortsfactory/internal/media"
)

const (
	OutputWidth  = 1080
	TopHeight    = 1344
	BottomHeight = 576
	FrameRate    = 30
)

// AudioSource selects the soundtrack of a composite.
type AudioSource int

const (
	// AudioOriginal keeps the clip's own audio.
	AudioOriginal AudioSource = iota
	// AudioBackup loops the backup track for the clip's duration.
	AudioBackup
	// AudioSilent produces a video without an audio stream.
	AudioSilent
)

// ComposeOptions describes a split-screen composite: the clip on top and a
// looping face video below.
type ComposeOptions struct {
	Input           string
	FaceVideo       string
	BackupAudio     string
	Audio           AudioSource
	DurationSeconds float64
	Output          string
}

// Client runs ffmpeg through a replaceable runner.
type Client struct {
	Binary string
	Run    media.Runner
}

// New builds a client; an empty binary means "ffmpeg" on PATH.
func New(binary string, run media.Runner) *Client {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Client{Binary: binary, Run: media.OrDefault(run)}
}

// ExtractAudio writes a mono 16kHz PCM WAV suitable for speech recognition.
func (c *Client) ExtractAudio(ctx context.Context, input, output string) error {
	if _, err := c.Run(ctx, c.Binary, ExtractAudioArgs(input, output)...); err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w", err)
	}
	return nil
}

// Compose renders the split-screen composite.
func (c *Client) Compose(ctx context.Context, opts ComposeOptions) error {
	args, err := ComposeArgs(opts)
	if err != nil {
		return err
	}
	if _, err := c.Run(ctx, c.Binary, args...); err != nil {
		return fmt.Errorf("ffmpeg compose: %w", err)
	}
	return nil
}

// BurnSubtitles renders an ASS script into the video, copying the audio.
func (c *Client) BurnSubtitles(ctx context.Context, input, script, output string) error {
	if _, err := c.Run(ctx, c.Binary, BurnSubtitlesArgs(input, script, output)...); err != nil {
		return fmt.Errorf("ffmpeg burn subtitles: %w", err)
	}
	return nil
}

// ExtractAudioArgs returns the argument list for ExtractAudio.
func ExtractAudioArgs(input, output string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", input,
		"-vn",
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		output,
	}
}

// ComposeFilter is the filter graph stacking the clip over the face video.
func ComposeFilter() string {
	scale := func(input string, height int, label string) string {
		return fmt.Sprintf("[%s]fps=%d,scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1[%s]",
			input, FrameRate, OutputWidth, height, OutputWidth, height, label)
	}
	return strings.Join([]string{
		scale("0:v", TopHeight, "top"),
		scale("1:v", BottomHeight, "bottom"),
		"[top][bottom]vstack=inputs=2[outv]",
	}, ";")
}

// ComposeArgs returns the argument list for Compose.
func ComposeArgs(opts ComposeOptions) ([]string, error) {
	if opts.Input == "" || opts.FaceVideo == "" || opts.Output == "" {
		return nil, errors.New("ffmpeg compose: input, face video, and output are required")
	}
	if opts.DurationSeconds <= 0 {
		return nil, fmt.Errorf("ffmpeg compose: invalid duration %v", opts.DurationSeconds)
	}
	if opts.Audio == AudioBackup && opts.BackupAudio == "" {
		return nil, errors.New("ffmpeg compose: backup audio path is required")
	}

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", opts.Input,
		"-stream_loop", "-1", "-i", opts.FaceVideo,
	}
	if opts.Audio == AudioBackup {
		args = append(args, "-stream_loop", "-1", "-i", opts.BackupAudio)
	}
	args = append(args,
		"-filter_complex", ComposeFilter(),
		"-map", "[outv]",
	)
	switch opts.Audio {
	case AudioOriginal:
		args = append(args, "-map", "0:a")
	case AudioBackup:
		args = append(args, "-map", "2:a")
	}
	args = append(args, "-c:v", "libx264", "-preset", "fast", "-crf", "23")
	if opts.Audio != AudioSilent {
		args = append(args, "-c:a", "aac", "-b:a", "128k")
	}
	args = append(args,
		"-t", strconv.FormatFloat(opts.DurationSeconds, 'f', -1, 64),
		opts.Output,
	)
	return args, nil
}

// BurnSubtitlesArgs returns the argument list for BurnSubtitles.
func BurnSubtitlesArgs(input, script, output string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", input,
		"-vf", "ass=" + EscapeFilterPath(script),
		"-c:v", "libx264", "-preset", "fast", "-crf", "23",
		"-c:a", "copy",
		output,
	}
}

// EscapeFilterPath quotes a path for use as a filter option value.
func EscapeFilterPath(path string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`, `,`, `\,`, `[`, `\[`, `]`, `\]`, `;`, `\;`)
	return replacer.Replace(path)
}
