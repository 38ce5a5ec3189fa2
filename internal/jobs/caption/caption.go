// Package caption burns word-group captions into edited videos.
package caption

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"shortsfactory/internal/config"
	"shortsfactory/internal/deps"
	"shortsfactory/internal/fileutil"
	"shortsfactory/internal/logging"
	"shortsfactory/internal/media"
	"shortsfactory/internal/media/ffmpeg"
	"shortsfactory/internal/records"
	"shortsfactory/internal/services"
	"shortsfactory/internal/stage"
)

// Handler moves records from edited to captioned.
type Handler struct {
	cfg    *config.Config
	ffmpeg *ffmpeg.Client
}

// New builds the handler; run replaces ffmpeg when non-nil.
func New(cfg *config.Config, run media.Runner) *Handler {
	return &Handler{
		cfg:    cfg,
		ffmpeg: ffmpeg.New(cfg.Media.FFmpegBinary, run),
	}
}

func (h *Handler) Name() string { return config.JobCaptioner }

func (h *Handler) From() records.Status { return records.StatusEdited }

func (h *Handler) Prepare(context.Context) error {
	for _, dir := range []string{h.cfg.Paths.OutDir(), h.cfg.Paths.TempDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return services.Wrap(services.ErrConfiguration, h.Name(), "prepare", "create directory", err)
		}
	}
	return nil
}

// Transform writes out/<id>_captioned.mp4. Clips without speech are copied
// through unchanged; the subtitle script is always removed afterwards.
func (h *Handler) Transform(ctx context.Context, video *records.Video) (stage.Result, error) {
	transcript, err := video.Transcript()
	if err != nil {
		return stage.Result{}, services.Wrap(services.ErrValidation, h.Name(), "transcript", "unreadable transcription", err)
	}
	output := OutputPath(h.cfg, video.ID)

	if IsNoSpeech(transcript.Words) {
		if err := fileutil.CopyFile(video.SourcePath, output); err != nil {
			return stage.Result{Artifact: output}, services.Wrap(services.ErrExternalTool, h.Name(), "copy", "copy through", err)
		}
		return stage.Result{Artifact: output, Note: "no speech; copied without captions"}, nil
	}

	events := Group(transcript.Words, h.cfg.Media.CaptionGroupSize, transcript.Language)
	script := filepath.Join(h.cfg.Paths.TempDir(), video.ID+".ass")
	if err := os.WriteFile(script, []byte(RenderASS(events)), 0o644); err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, h.Name(), "subtitles", "write script", err)
	}
	defer func() {
		if err := os.Remove(script); err != nil && !os.IsNotExist(err) {
			stage.Logger(ctx).Warn("subtitle script not removed", logging.String("path", script), logging.Error(err))
		}
	}()

	if err := h.ffmpeg.BurnSubtitles(ctx, video.SourcePath, script, output); err != nil {
		return stage.Result{Artifact: output}, services.Wrap(services.ErrExternalTool, h.Name(), "burn", "ffmpeg failed", err)
	}
	return stage.Result{
		Artifact: output,
		Note:     fmt.Sprintf("%d captions from %d words", len(events), len(transcript.Words)),
	}, nil
}

// OutputPath is where the captioned video for id is written.
func OutputPath(cfg *config.Config, id string) string {
	return filepath.Join(cfg.Paths.OutDir(), id+"_captioned.mp4")
}

func (h *Handler) HealthCheck(context.Context) stage.Health {
	if missing := deps.Missing(h.cfg.Media.FFmpegBinary); missing != "" {
		return stage.Unhealthy(h.Name(), fmt.Sprintf("binary %q not found", missing))
	}
	return stage.Healthy(h.Name())
}
