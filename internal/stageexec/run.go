package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"shortsfactory/internal/logging"
	"shortsfactory/internal/metrics"
	"shortsfactory/internal/notifications"
	"shortsfactory/internal/records"
	"shortsfactory/internal/services"
	"shortsfactory/internal/stage"
)

// Options controls how a stage handler is driven against the store.
type Options struct {
	Logger           *slog.Logger
	Store            *records.Store
	Reporter         *notifications.Reporter
	Metrics          *metrics.Metrics
	Handler          stage.Handler
	BatchSize        int
	TransformTimeout time.Duration
	// NewToken mints claim tokens; defaults to random UUIDs.
	NewToken func() string
}

// Job wraps a handler as a runnable stage.Job.
type Job struct {
	opts Options
}

// NewJob binds opts to a job named after the handler.
func NewJob(opts Options) *Job {
	return &Job{opts: opts}
}

func (j *Job) Name() string {
	if j.opts.Handler == nil {
		return ""
	}
	return j.opts.Handler.Name()
}

func (j *Job) Run(ctx context.Context) (stage.Summary, error) {
	return Run(ctx, j.opts)
}

// HealthCheck forwards to the handler.
func (j *Job) HealthCheck(ctx context.Context) stage.Health {
	return j.opts.Handler.HealthCheck(ctx)
}

// Run claims up to a batch of eligible records one at a time, transforms
// each under a timeout, and commits or releases it. A failing record never
// aborts the batch; only a Prepare failure or a store error does. Runs over
// the same options may execute concurrently: claims keep them on disjoint
// records, and metered handlers reserve their allowance with each claim.
func Run(ctx context.Context, opts Options) (stage.Summary, error) {
	var summary stage.Summary
	if opts.Handler == nil {
		return summary, errors.New("stage handler is required")
	}
	if opts.Store == nil {
		return summary, errors.New("record store is required")
	}
	name := opts.Handler.Name()
	from := opts.Handler.From()
	to, ok := records.AllowedNext(from)
	if !ok {
		return summary, fmt.Errorf("%w: stage %s consumes %s", records.ErrInvalidTransition, name, from)
	}
	newToken := opts.NewToken
	if newToken == nil {
		newToken = uuid.NewString
	}

	stageCtx := services.WithStage(ctx, name)
	logger := logging.WithContext(stageCtx, opts.Logger)
	stageCtx = stage.WithLogger(stageCtx, logger)

	if err := opts.Handler.Prepare(stageCtx); err != nil {
		logger.Error("stage setup failed",
			logging.String(logging.FieldEventType, "stage_setup_failed"),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err),
		)
		return summary, err
	}

	limit := opts.BatchSize
	if limit <= 0 {
		limit = 1
	}
	if limiter, ok := opts.Handler.(stage.Limiter); ok {
		allowed, err := limiter.Limit(stageCtx)
		if err != nil {
			return summary, fmt.Errorf("%s: compute limit: %w", name, err)
		}
		if allowed < limit {
			limit = allowed
		}
		if limit <= 0 {
			summary.Detail = "limit reached"
			logger.Info("stage skipped", logging.String(logging.FieldEventType, "stage_limit_reached"))
			return summary, nil
		}
	}

	metered, _ := opts.Handler.(stage.Metered)
	for i := 0; i < limit; i++ {
		if err := stageCtx.Err(); err != nil {
			return summary, err
		}
		var claim *records.Claim
		var err error
		if metered != nil {
			claim, err = opts.Store.ClaimNextWithQuota(stageCtx, from, newToken(), metered.QuotaCharge(stageCtx))
			if errors.Is(err, records.ErrQuotaExhausted) {
				summary.Detail = "limit reached"
				logger.Info("daily allowance used up", logging.String(logging.FieldEventType, "stage_limit_reached"))
				break
			}
		} else {
			claim, err = opts.Store.ClaimNext(stageCtx, from, newToken())
		}
		if err != nil {
			return summary, fmt.Errorf("%s: claim: %w", name, err)
		}
		if claim == nil {
			break
		}
		summary.Claimed++
		if processOne(stage.WithPosition(stageCtx, summary.Succeeded), opts, logger, claim, to) {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	if summary.Claimed == 0 {
		logger.Debug("no eligible records", logging.String("status", string(from)))
	} else {
		logger.Info("stage run finished",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Int("claimed", summary.Claimed),
			logging.Int("succeeded", summary.Succeeded),
			logging.Int("failed", summary.Failed),
		)
	}
	return summary, nil
}

func processOne(ctx context.Context, opts Options, baseLogger *slog.Logger, claim *records.Claim, to records.Status) bool {
	name := opts.Handler.Name()
	video := claim.Video
	source := video.SourcePath
	recordCtx := services.WithRecordID(ctx, video.ID)
	logger := logging.WithContext(recordCtx, baseLogger)
	recordCtx = stage.WithLogger(recordCtx, logger)
	// Store writes outlive a shutdown signal so a finished transform still lands.
	storeCtx := context.WithoutCancel(recordCtx)

	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("title", video.DisplayTitle()),
		logging.String("source_file", source),
	)
	started := time.Now()

	result, err := transform(recordCtx, opts, video)
	if err != nil {
		err = services.Classify(name, "transform", err)
		discardArtifact(logger, result.Artifact, source)
		fail(storeCtx, opts, logger, claim, err)
		return false
	}

	tr := records.Transition{
		Claim:         claim,
		To:            to,
		Transcription: result.Transcription,
		Description:   result.Description,
		PublishedAt:   result.PublishedAt,
	}
	if result.Artifact != "" && result.Artifact != source {
		tr.SourcePath = result.Artifact
	}
	if err := opts.Store.Commit(storeCtx, tr); err != nil {
		discardArtifact(logger, result.Artifact, source)
		if errors.Is(err, records.ErrClaimLost) {
			opts.Metrics.ObserveRecord(name, metrics.OutcomeLost)
			logging.WarnWithContext(logger, "claim lost before commit", "stage_claim_lost",
				logging.Error(err),
				logging.String(logging.FieldImpact, "result discarded; record is handled elsewhere"),
			)
			return false
		}
		fail(storeCtx, opts, logger, claim, fmt.Errorf("commit: %w", err))
		return false
	}

	if tr.SourcePath != "" {
		if err := os.Remove(source); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(logger, "previous artifact not removed", "stage_cleanup_failed",
				logging.String("path", source),
				logging.Error(err),
				logging.String(logging.FieldImpact, "file will be swept by the cleaner"),
			)
		}
	}
	if hook, ok := opts.Handler.(stage.Committed); ok {
		committed := *video
		committed.Status = to
		if tr.SourcePath != "" {
			committed.SourcePath = tr.SourcePath
		}
		hook.AfterCommit(recordCtx, &committed, result)
	}

	opts.Metrics.ObserveRecord(name, metrics.OutcomeSucceeded)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_record_complete"),
		logging.String("next_status", string(to)),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
	}
	if note := strings.TrimSpace(result.Note); note != "" {
		attrs = append(attrs, logging.String("note", note))
	}
	logger.Info("stage completed", logging.Args(attrs...)...)
	return true
}

// transform runs the handler under the configured timeout and turns a panic
// into an ordinary record failure so the claim is released.
func transform(ctx context.Context, opts Options, video *records.Video) (result stage.Result, err error) {
	if opts.TransformTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TransformTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transform panic: %v", r)
		}
	}()
	result, err = opts.Handler.Transform(ctx, video)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return result, err
}

func fail(ctx context.Context, opts Options, logger *slog.Logger, claim *records.Claim, cause error) {
	name := opts.Handler.Name()
	status, err := opts.Store.Release(ctx, claim, cause, services.IsPermanent(cause))
	if err != nil {
		logger.Error("failed to release claim",
			logging.String(logging.FieldEventType, "stage_release_failed"),
			logging.Error(err),
		)
	}
	outcome := metrics.OutcomeFailed
	if status == records.StatusFailed {
		outcome = metrics.OutcomeExhausted
	}
	opts.Metrics.ObserveRecord(name, outcome)

	logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldErrorKind, services.Kind(cause)),
		logging.String("resolved_status", string(status)),
		logging.Error(cause),
	)
	opts.Reporter.Report(ctx, name, cause, map[string]string{
		"recordID":       claim.Video.ID,
		"title":          claim.Video.DisplayTitle(),
		"resolvedStatus": string(status),
	})
}

func discardArtifact(logger *slog.Logger, artifact, source string) {
	if artifact == "" || artifact == source {
		return
	}
	if err := os.Remove(artifact); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to discard artifact",
			logging.String("path", artifact),
			logging.Error(err),
		)
	}
}
