// Package transcribe turns a collected clip's speech into word-level timings.
package transcribe

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
	"shortsfactory/internal/services/whisper"
	"shortsfactory/internal/stage"
)

// Handler moves records from collected to transcribed. The media file is
// left untouched.
type Handler struct {
	cfg     *config.Config
	probe   *ffprobe.Client
	ffmpeg  *ffmpeg.Client
	whisper *whisper.Service
}

// New builds the handler; run replaces every external command when non-nil.
func New(cfg *config.Config, run media.Runner) *Handler {
	return &Handler{
		cfg:    cfg,
		probe:  ffprobe.New(cfg.Media.FFprobeBinary, run),
		ffmpeg: ffmpeg.New(cfg.Media.FFmpegBinary, run),
		whisper: whisper.NewService(whisper.Config{
			PythonBinary: cfg.Media.PythonBinary,
			Model:        cfg.Media.WhisperModel,
		}, run),
	}
}

func (h *Handler) Name() string { return config.JobTranscribe }

func (h *Handler) From() records.Status { return records.StatusCollected }

// Prepare makes sure the scratch directory exists and has room for WAV files.
func (h *Handler) Prepare(ctx context.Context) error {
	temp := h.cfg.Paths.TempDir()
	if err := os.MkdirAll(temp, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, h.Name(), "prepare", "create temp directory", err)
	}
	if check := preflight.CheckFreeSpace("temp", temp, h.cfg.Media.MinFreeDiskMiB); !check.Passed {
		return services.Wrap(services.ErrConfiguration, h.Name(), "prepare", "insufficient disk space", fmt.Errorf("%s", check.Detail))
	}
	return nil
}

// Transform produces the transcription for one record. Clips without an
// audio stream, or whose audio is too short to hold speech, get an empty
// transcript. A recogniser failure fails the record so it is retried.
func (h *Handler) Transform(ctx context.Context, video *records.Video) (stage.Result, error) {
	info, err := h.probe.Inspect(ctx, video.SourcePath)
	if err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, h.Name(), "ffprobe", "inspect source", err)
	}
	language := h.cfg.Media.DefaultLanguage

	if !info.HasAudio() {
		return encode(records.EmptyTranscript(language), "no audio stream")
	}

	audioPath := filepath.Join(h.cfg.Paths.TempDir(), video.ID+".wav")
	defer os.Remove(audioPath)
	if err := h.ffmpeg.ExtractAudio(ctx, video.SourcePath, audioPath); err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, h.Name(), "extract audio", "ffmpeg failed", err)
	}
	stat, err := os.Stat(audioPath)
	if err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, h.Name(), "extract audio", "audio file missing", err)
	}
	if stat.Size() < h.cfg.Media.MinAudioBytes {
		stage.Logger(ctx).Debug("audio too short for speech",
			logging.Int64("audio_bytes", stat.Size()),
			logging.Int64("min_audio_bytes", h.cfg.Media.MinAudioBytes),
		)
		return encode(records.EmptyTranscript(language), "audio too short")
	}

	transcript, err := h.whisper.Transcribe(ctx, audioPath, h.cfg.Paths.TempDir())
	if err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, h.Name(), "whisper", "transcription failed", err)
	}
	if transcript.Language == "" {
		transcript.Language = language
	}
	return encode(transcript, fmt.Sprintf("%d words (%s)", len(transcript.Words), transcript.Language))
}

func encode(transcript records.Transcript, note string) (stage.Result, error) {
	encoded, err := transcript.Encode()
	if err != nil {
		return stage.Result{}, err
	}
	return stage.Result{Transcription: &encoded, Note: note}, nil
}

// HealthCheck reports whether the binaries this stage shells out to are on PATH.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	if missing := deps.Missing(h.cfg.Media.FFprobeBinary, h.cfg.Media.FFmpegBinary, h.cfg.Media.PythonBinary); missing != "" {
		return stage.Unhealthy(h.Name(), fmt.Sprintf("binary %q not found", missing))
	}
	return stage.Healthy(h.Name())
}
