package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"shortsfactory/internal/config"
)

// Requirement defines an external binary the pipeline shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries the configured jobs invoke.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{Name: "FFmpeg", Command: cfg.Media.FFmpegBinary, Description: "audio extraction, compositing, caption burn-in"},
		{Name: "FFprobe", Command: cfg.Media.FFprobeBinary, Description: "stream and duration inspection"},
		{Name: "Python", Command: cfg.Media.PythonBinary, Description: "faster-whisper transcription"},
	}
	if cfg.Discover.Enabled {
		reqs = append(reqs, Requirement{
			Name:        "yt-dlp",
			Command:     cfg.Discover.YtDlpBinary,
			Description: "viral clip downloads",
			Optional:    true,
		})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, CheckBinary(req))
	}
	return results
}

// CheckBinary resolves a single requirement against PATH.
func CheckBinary(req Requirement) Status {
	cmd := strings.TrimSpace(req.Command)
	status := Status{
		Name:        req.Name,
		Command:     cmd,
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if cmd == "" {
		status.Detail = "command not configured"
		return status
	}
	if _, err := exec.LookPath(cmd); err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", cmd)
		return status
	}
	status.Available = true
	return status
}

// Missing returns the first unavailable required binary among names, or "".
func Missing(commands ...string) string {
	for _, cmd := range commands {
		if !CheckBinary(Requirement{Name: cmd, Command: cmd}).Available {
			return cmd
		}
	}
	return ""
}
