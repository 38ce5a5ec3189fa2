// Package describe generates publish captions for transcribed records. It
// enriches records in place and never changes their status.
package describe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"shortsfactory/internal/config"
	"shortsfactory/internal/logging"
	"shortsfactory/internal/notifications"
	"shortsfactory/internal/records"
	"shortsfactory/internal/services"
	"shortsfactory/internal/services/llm"
	"shortsfactory/internal/stage"
)

// Completer produces text for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Job fills the description of up to BatchSize transcribed records.
type Job struct {
	cfg       *config.Config
	store     *records.Store
	completer Completer
	reporter  *notifications.Reporter
	logger    *slog.Logger
}

// New builds the job around the configured chat client.
func New(cfg *config.Config, store *records.Store, reporter *notifications.Reporter, logger *slog.Logger) *Job {
	var completer Completer
	if strings.TrimSpace(cfg.LLM.APIKey) != "" {
		completer = llm.NewClient(llm.Config{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			MaxTokens:      cfg.LLM.MaxTokens,
			Temperature:    cfg.LLM.Temperature,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		})
	}
	return NewWithCompleter(cfg, store, completer, reporter, logger)
}

// NewWithCompleter builds the job with an explicit completer; nil disables generation.
func NewWithCompleter(cfg *config.Config, store *records.Store, completer Completer, reporter *notifications.Reporter, logger *slog.Logger) *Job {
	return &Job{
		cfg:       cfg,
		store:     store,
		completer: completer,
		reporter:  reporter,
		logger:    logging.NewComponentLogger(logger, config.JobDescriptionGenerator),
	}
}

func (j *Job) Name() string { return config.JobDescriptionGenerator }

// Run describes each pending record independently; one failure does not stop
// the others and leaves the record eligible for the next run.
func (j *Job) Run(ctx context.Context) (stage.Summary, error) {
	var summary stage.Summary
	if j.completer == nil {
		summary.Detail = "llm api key not configured"
		j.logger.Info("description generation skipped", logging.String(logging.FieldEventType, "describe_unconfigured"))
		return summary, nil
	}
	ctx = services.WithStage(ctx, j.Name())
	limit := j.cfg.LLM.BatchSize
	if limit <= 0 {
		limit = 1
	}
	videos, err := j.store.ListNeedingDescription(ctx, limit)
	if err != nil {
		return summary, fmt.Errorf("%s: list records: %w", j.Name(), err)
	}
	for _, video := range videos {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Claimed++
		recordCtx := services.WithRecordID(ctx, video.ID)
		logger := logging.WithContext(recordCtx, j.logger)

		description, err := j.describe(recordCtx, video)
		if err != nil {
			summary.Failed++
			logging.WarnWithContext(logger, "description generation failed", "describe_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "publisher falls back to the title"),
			)
			j.reporter.Report(recordCtx, j.Name(), err, map[string]string{"recordID": video.ID})
			continue
		}
		stored, err := j.store.SetDescription(recordCtx, video.ID, description)
		if err != nil {
			return summary, fmt.Errorf("%s: store description: %w", j.Name(), err)
		}
		if !stored {
			summary.Skipped++
			continue
		}
		summary.Succeeded++
		logger.Info("description generated",
			logging.String(logging.FieldEventType, "describe_complete"),
			logging.String("preview", preview(description, 80)),
		)
	}
	return summary, nil
}

func (j *Job) describe(ctx context.Context, video *records.Video) (string, error) {
	transcript, err := video.Transcript()
	if err != nil {
		// An unreadable transcript still deserves a caption built from the title.
		transcript = records.EmptyTranscript("")
	}
	text, err := j.completer.Complete(ctx, BuildPrompt(video.DisplayTitle(), transcript.Text()))
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, j.Name(), "complete", "chat completion failed", err)
	}
	text = strings.Trim(strings.TrimSpace(text), `"`)
	if text == "" {
		return "", services.Wrap(services.ErrValidation, j.Name(), "complete", "empty description", nil)
	}
	return text, nil
}

// BuildPrompt asks for a short hook with emojis followed by hashtags.
func BuildPrompt(title, transcript string) string {
	if strings.TrimSpace(transcript) == "" {
		transcript = "(no audio)"
	}
	return fmt.Sprintf(`You are a viral social media expert. Generate a short, engaging description for a TikTok/Instagram Reel.

Original title: %s
Video transcript: %s

Rules:
- Maximum 150 characters for the main text
- Use 1-2 relevant emojis
- Create curiosity or emotional hook
- Add a line break, then 5-8 relevant hashtags
- Don't use quotes around the text
- Write in the same language as the title/transcript

Example format:
Wait for it... This is absolutely insane! 🤯

#viral #fyp #amazing #shorts #mindblown`, title, transcript)
}

func preview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
