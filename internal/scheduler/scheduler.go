// Package scheduler gives every job its own repeating timer. Timers are
// independent: a slow job only delays its own next run.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"shortsfactory/internal/config"
	"shortsfactory/internal/logging"
	"shortsfactory/internal/runner"
	"shortsfactory/internal/stage"
)

// Entry describes one scheduled job.
type Entry struct {
	Job      string        `json:"job"`
	Interval time.Duration `json:"-"`
	Next     time.Time     `json:"next"`
	Prev     time.Time     `json:"prev"`
}

type scheduled struct {
	job   stage.Job
	every time.Duration
}

// Scheduler owns a cron instance with one constant-delay entry per job.
type Scheduler struct {
	cron   *cron.Cron
	runner *runner.Runner
	logger *slog.Logger
	jitter time.Duration
	pick   func(n int64) int64

	jobs []scheduled

	mu      sync.Mutex
	entries map[string]cron.EntryID
	started bool
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithJitterPicker replaces the random source for startup jitter. pick
// receives the jitter window in nanoseconds.
func WithJitterPicker(pick func(n int64) int64) Option {
	return func(s *Scheduler) { s.pick = pick }
}

// New registers every job that has a positive interval in cfg.
func New(cfg *config.Config, jobs []stage.Job, run *runner.Runner, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if cfg == nil || run == nil {
		return nil, errors.New("scheduler requires config and runner")
	}
	logger = logging.NewComponentLogger(logger, "scheduler")
	cronLog := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location()),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		runner:  run,
		logger:  logger,
		jitter:  time.Duration(cfg.Scheduler.JitterSeconds) * time.Second,
		pick:    rand.Int64N,
		entries: make(map[string]cron.EntryID),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, job := range jobs {
		every := cfg.JobInterval(job.Name())
		if every <= 0 {
			logger.Info("job not scheduled", logging.String(logging.FieldJob, job.Name()))
			continue
		}
		s.jobs = append(s.jobs, scheduled{job: job, every: every})
	}
	return s, nil
}

func (s *Scheduler) wrap(ctx context.Context, job stage.Job) cron.Job {
	return cron.FuncJob(func() {
		s.runner.Run(ctx, job)
	})
}

// Start arms every timer. Each job first fires after a random delay within
// the jitter window, then once per interval. Jobs run under ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	now := time.Now()
	for _, sj := range s.jobs {
		name := sj.job.Name()
		first := now.Add(s.startupDelay())
		s.entries[name] = s.cron.Schedule(&startupSchedule{first: first, every: cron.Every(sj.every)}, s.wrap(ctx, sj.job))
		s.logger.Info("job scheduled",
			logging.String(logging.FieldJob, name),
			logging.Duration("interval", sj.every),
			logging.String("first_run", first.Format(time.RFC3339)),
		)
	}
	s.cron.Start()
	s.started = true
}

// Stop halts the timers and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with jobs still running",
			logging.String(logging.FieldEventType, "scheduler_stop_timeout"),
			logging.String(logging.FieldImpact, "in-flight claims are recovered at next startup"),
		)
	}
}

// Entries reports the scheduled jobs with their next and previous run times.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.jobs))
	for _, sj := range s.jobs {
		entry := Entry{Job: sj.job.Name(), Interval: sj.every}
		if id, ok := s.entries[entry.Job]; ok {
			e := s.cron.Entry(id)
			entry.Next, entry.Prev = e.Next, e.Prev
		}
		out = append(out, entry)
	}
	return out
}

func (s *Scheduler) startupDelay() time.Duration {
	if s.jitter <= 0 {
		return 0
	}
	return time.Duration(s.pick(int64(s.jitter)))
}

// startupSchedule fires once at first and then follows every. Only the
// cron goroutine calls Next.
type startupSchedule struct {
	first time.Time
	every cron.Schedule
	fired bool
}

func (s *startupSchedule) Next(t time.Time) time.Time {
	if !s.fired {
		s.fired = true
		return s.first
	}
	return s.every.Next(t)
}

// cronLogger routes cron's own messages through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{logging.Error(err)}, keysAndValues...)
	l.logger.Error("cron: "+msg, args...)
}
