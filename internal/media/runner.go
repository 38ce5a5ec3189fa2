// Package media holds the command runner shared by the ffmpeg, ffprobe,
// whisper, and yt-dlp wrappers.
package media

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes name with args and returns combined output. Tests swap it
// for a fake that records arguments and writes expected outputs.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

const maxErrorOutput = 2048

// ExecRunner runs the command with os/exec. The process is killed when ctx ends.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return output, fmt.Errorf("%s: %w", name, ctxErr)
		}
		return output, fmt.Errorf("%s: %w: %s", name, err, Tail(output, maxErrorOutput))
	}
	return output, nil
}

// OrDefault returns run, or ExecRunner when run is nil.
func OrDefault(run Runner) Runner {
	if run == nil {
		return ExecRunner
	}
	return run
}

// Tail returns the last limit bytes of output, trimmed.
func Tail(output []byte, limit int) string {
	text := strings.TrimSpace(string(output))
	if len(text) > limit {
		text = "..." + strings.ToValidUTF8(text[len(text)-limit:], "")
	}
	return text
}
