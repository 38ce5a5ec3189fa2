// Package ytdlp downloads remote videos with the yt-dlp command line tool.
package ytdlp

import (
	"context"
	"fmt"
	"strings"

	"shortsfactory/internal/media"
)

// Format caps downloads at 1080p and prefers separate best streams merged to mp4.
const Format = "bestvideo[height<=1080]+bestaudio/best[height<=1080]/best"

// Client runs yt-dlp through a replaceable runner.
type Client struct {
	Binary string
	Run    media.Runner
}

// New builds a client; an empty binary means "yt-dlp" on PATH.
func New(binary string, run media.Runner) *Client {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Client{Binary: binary, Run: media.OrDefault(run)}
}

// Download fetches url into output as an mp4. The caller bounds the runtime
// through ctx.
func (c *Client) Download(ctx context.Context, url, output string) error {
	if _, err := c.Run(ctx, c.Binary, Args(url, output)...); err != nil {
		return fmt.Errorf("yt-dlp download: %w", err)
	}
	return nil
}

// Args returns the yt-dlp argument list for one download.
func Args(url, output string) []string {
	return []string{
		url,
		"-f", Format,
		"--merge-output-format", "mp4",
		"-o", output,
		"--no-playlist",
	}
}
