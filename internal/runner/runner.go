// Package runner executes one job in isolation. Whatever the job does, the
// caller gets a Result back: errors, timeouts, and panics are all reduced to
// Success=false and reported.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"shortsfactory/internal/logging"
	"shortsfactory/internal/metrics"
	"shortsfactory/internal/notifications"
	"shortsfactory/internal/services"
	"shortsfactory/internal/stage"
)

// ErrPanic marks a job that panicked.
var ErrPanic = errors.New("job panicked")

// Result is the outcome of one job run.
type Result struct {
	Job      string        `json:"job"`
	Success  bool          `json:"success"`
	Summary  stage.Summary `json:"summary"`
	Error    string        `json:"error,omitempty"`
	Started  time.Time     `json:"startedAt"`
	Duration time.Duration `json:"-"`
	Elapsed  string        `json:"duration"`
}

// Runner runs jobs with a shared timeout, metrics, and failure reporting.
type Runner struct {
	logger   *slog.Logger
	metrics  *metrics.Metrics
	reporter *notifications.Reporter
	timeout  time.Duration
	now      func() time.Time
}

// Option customizes a Runner.
type Option func(*Runner)

// WithTimeout bounds every run. Zero leaves runs unbounded.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithMetrics records job outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithReporter reports failed runs.
func WithReporter(rep *notifications.Reporter) Option {
	return func(r *Runner) { r.reporter = rep }
}

// New builds a Runner.
func New(logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		logger: logging.NewComponentLogger(logger, "runner"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes job and never returns an error; the Result carries it.
func (r *Runner) Run(ctx context.Context, job stage.Job) Result {
	name := job.Name()
	res := Result{Job: name, Started: r.now().UTC()}

	runCtx := services.WithStage(ctx, name)
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, r.timeout)
		defer cancel()
	}
	logger := logging.WithContext(runCtx, r.logger)
	logger.Info("job started", logging.String(logging.FieldEventType, "job_start"))

	summary, err := invoke(runCtx, job)
	if err != nil && !errors.Is(err, services.ErrTimeout) && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		err = services.Wrap(services.ErrTimeout, name, "run", "job timeout exceeded", err)
	}
	res.Summary = summary
	res.Duration = r.now().UTC().Sub(res.Started)
	res.Elapsed = fmt.Sprintf("%.1fs", res.Duration.Seconds())
	res.Success = err == nil

	r.metrics.ObserveJob(name, res.Success, res.Duration)

	if err != nil {
		res.Error = err.Error()
		logger.Error("job failed",
			logging.String(logging.FieldEventType, "job_failed"),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Duration("duration", res.Duration),
			logging.Error(err),
		)
		r.reporter.Report(runCtx, name, err, map[string]string{"phase": "run"})
		return res
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Duration("duration", res.Duration),
		logging.Int("claimed", summary.Claimed),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
	}
	if summary.Detail != "" {
		attrs = append(attrs, logging.String("detail", summary.Detail))
	}
	logger.Info("job finished", logging.Args(attrs...)...)
	return res
}

func invoke(ctx context.Context, job stage.Job) (summary stage.Summary, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrPanic, p, debug.Stack())
		}
	}()
	return job.Run(ctx)
}
