// Package edit composes transcribed clips into the vertical split-screen
// layout: the clip on top, a looping face video below.
package edit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"shortsfactory/internal/config"
	"shortsfactory/internal/deps"
	"shortsfactory/internal/logging"
	"shortsfactory/internal/media"
	"shortsfactory/internal/media/ffmpeg"
	"shortsfactory/internal/media/ffprobe"
	"shortsfactory/internal/preflight"
	"shortsfactory/internal/records"
	"shortsfactory/internal/services"
	"shortsfactory/internal/stage"
)

// Handler moves records from transcribed to edited.
type Handler struct {
	cfg    *config.Config
	probe  *ffprobe.Client
	ffmpeg *ffmpeg.Client
}

// New builds the handler; run replaces every external command when non-nil.
func New(cfg *config.Config, run media.Runner) *Handler {
	return &Handler{
		cfg:    cfg,
		probe:  ffprobe.New(cfg.Media.FFprobeBinary, run),
		ffmpeg: ffmpeg.New(cfg.Media.FFmpegBinary, run),
	}
}

func (h *Handler) Name() string { return config.JobEditor }

func (h *Handler) From() records.Status { return records.StatusTranscribed }

// Prepare fails the whole run when the face video is missing; no record
// could be composed without it.
func (h *Handler) Prepare(ctx context.Context) error {
	if check := preflight.CheckFile("face video", h.cfg.Paths.FaceVideo); !check.Passed {
		return services.Wrap(services.ErrConfiguration, h.Name(), "prepare", "face video unavailable", fmt.Errorf("%s", check.Detail))
	}
	if err := os.MkdirAll(h.cfg.Paths.OutDir(), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, h.Name(), "prepare", "create output directory", err)
	}
	if check := preflight.CheckFreeSpace("out", h.cfg.Paths.OutDir(), h.cfg.Media.MinFreeDiskMiB); !check.Passed {
		return services.Wrap(services.ErrConfiguration, h.Name(), "prepare", "insufficient disk space", fmt.Errorf("%s", check.Detail))
	}
	return nil
}

// Transform renders out/<id>_edited.mp4 for the same duration as the source.
func (h *Handler) Transform(ctx context.Context, video *records.Video) (stage.Result, error) {
	info, err := h.probe.Inspect(ctx, video.SourcePath)
	if err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, h.Name(), "ffprobe", "inspect source", err)
	}
	duration, ok := info.Duration()
	if !ok {
		return stage.Result{}, services.Wrap(services.ErrValidation, h.Name(), "ffprobe", fmt.Sprintf("unusable duration %q", info.Format.Duration), nil)
	}

	audio := h.audioSource(ctx, info.HasAudio())
	output := OutputPath(h.cfg, video.ID)
	err = h.ffmpeg.Compose(ctx, ffmpeg.ComposeOptions{
		Input:           video.SourcePath,
		FaceVideo:       h.cfg.Paths.FaceVideo,
		BackupAudio:     h.cfg.Paths.BackupAudio,
		Audio:           audio,
		DurationSeconds: duration,
		Output:          output,
	})
	if err != nil {
		return stage.Result{Artifact: output}, services.Wrap(services.ErrExternalTool, h.Name(), "compose", "ffmpeg failed", err)
	}
	if _, err := os.Stat(output); err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, h.Name(), "compose", "output missing", err)
	}
	return stage.Result{
		Artifact: output,
		Note:     fmt.Sprintf("%.1fs, audio=%s", duration, audioLabel(audio)),
	}, nil
}

func (h *Handler) audioSource(ctx context.Context, hasAudio bool) ffmpeg.AudioSource {
	if hasAudio {
		return ffmpeg.AudioOriginal
	}
	if h.cfg.Paths.BackupAudio != "" {
		if _, err := os.Stat(h.cfg.Paths.BackupAudio); err == nil {
			return ffmpeg.AudioBackup
		}
	}
	stage.Logger(ctx).Debug("no source or backup audio; composing silent video",
		logging.String("backup_audio", h.cfg.Paths.BackupAudio),
	)
	return ffmpeg.AudioSilent
}

func audioLabel(a ffmpeg.AudioSource) string {
	switch a {
	case ffmpeg.AudioOriginal:
		return "original"
	case ffmpeg.AudioBackup:
		return "backup"
	default:
		return "silent"
	}
}

// OutputPath is where the composite for id is written.
func OutputPath(cfg *config.Config, id string) string {
	return filepath.Join(cfg.Paths.OutDir(), id+"_edited.mp4")
}

// HealthCheck reports missing binaries or a missing face video.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	if missing := deps.Missing(h.cfg.Media.FFprobeBinary, h.cfg.Media.FFmpegBinary); missing != "" {
		return stage.Unhealthy(h.Name(), fmt.Sprintf("binary %q not found", missing))
	}
	if check := preflight.CheckFile("face video", h.cfg.Paths.FaceVideo); !check.Passed {
		return stage.Unhealthy(h.Name(), check.Detail)
	}
	return stage.Healthy(h.Name())
}
