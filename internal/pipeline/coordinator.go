// Package pipeline runs the full job chain as one cycle and guarantees that
// at most one cycle is in flight.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"shortsfactory/internal/config"
	"shortsfactory/internal/logging"
	"shortsfactory/internal/metrics"
	"shortsfactory/internal/notifications"
	"shortsfactory/internal/records"
	"shortsfactory/internal/runner"
	"shortsfactory/internal/services"
	"shortsfactory/internal/stage"
)

var (
	// ErrAlreadyRunning rejects a cycle request while another cycle holds the run token.
	ErrAlreadyRunning = errors.New("pipeline already running")
	// ErrUnknownJob rejects a single-job trigger for a name outside the cycle.
	ErrUnknownJob = errors.New("job not found")
)

// Triggers recorded on each cycle.
const (
	TriggerCron    = "cron"
	TriggerStartup = "startup"
	TriggerManual  = "manual"
)

// CycleResult is the outcome of one completed cycle.
type CycleResult struct {
	RunToken   string                   `json:"runToken"`
	Trigger    string                   `json:"trigger"`
	Success    bool                     `json:"success"`
	Results    map[string]runner.Result `json:"results,omitempty"`
	FailedJobs []string                 `json:"failedJobs,omitempty"`
	Error      string                   `json:"error,omitempty"`
	StartedAt  time.Time                `json:"startedAt"`
	Duration   string                   `json:"duration"`
}

// State is the read-only view exposed by the control surface.
type State struct {
	IsRunning    bool         `json:"isRunning"`
	RunToken     string       `json:"runToken,omitempty"`
	LastRun      *time.Time   `json:"lastRun"`
	LastResult   *CycleResult `json:"lastResult"`
	CronInterval string       `json:"cronInterval"`
}

// Coordinator sequences jobs into cycles.
type Coordinator struct {
	jobs         []stage.Job
	byName       map[string]stage.Job
	runner       *runner.Runner
	logger       *slog.Logger
	metrics      *metrics.Metrics
	reporter     *notifications.Reporter
	store        *records.Store
	interval     time.Duration
	initialDelay time.Duration
	newToken     func() string
	now          func() time.Time

	token atomic.Pointer[string]
	wg    sync.WaitGroup

	mu         sync.RWMutex
	base       context.Context
	lastRun    *time.Time
	lastResult *CycleResult
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithMetrics records cycle outcomes and refreshes record gauges.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithReporter announces completed cycles and reports cycle-level failures.
func WithReporter(r *notifications.Reporter) Option {
	return func(c *Coordinator) { c.reporter = r }
}

// WithStore lets the coordinator refresh status and quota gauges after each cycle.
func WithStore(store *records.Store) Option {
	return func(c *Coordinator) { c.store = store }
}

// WithTokenSource replaces uuid run tokens.
func WithTokenSource(fn func() string) Option {
	return func(c *Coordinator) { c.newToken = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New builds a coordinator over jobs in cycle order.
func New(cfg *config.Config, jobs []stage.Job, run *runner.Runner, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		jobs:         jobs,
		byName:       make(map[string]stage.Job, len(jobs)),
		runner:       run,
		logger:       logging.NewComponentLogger(logger, "pipeline"),
		interval:     cfg.CronInterval(),
		initialDelay: time.Duration(cfg.Workflow.InitialRunDelaySeconds) * time.Second,
		newToken:     uuid.NewString,
		now:          time.Now,
		base:         context.Background(),
	}
	for _, job := range jobs {
		c.byName[job.Name()] = job
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// JobNames lists the jobs a single-job trigger accepts, in cycle order.
func (c *Coordinator) JobNames() []string {
	names := make([]string, 0, len(c.jobs))
	for _, job := range c.jobs {
		names = append(names, job.Name())
	}
	return names
}

// State reports the current run token and the last completed cycle.
func (c *Coordinator) State() State {
	st := State{CronInterval: fmt.Sprintf("%d minutes", int(c.interval/time.Minute))}
	if token := c.token.Load(); token != nil {
		st.IsRunning = true
		st.RunToken = *token
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastRun != nil {
		at := *c.lastRun
		st.LastRun = &at
	}
	if c.lastResult != nil {
		res := *c.lastResult
		st.LastResult = &res
	}
	return st
}

// RunCycle runs every job once, in order, and blocks until done. It returns
// ErrAlreadyRunning immediately when another cycle holds the run token.
func (c *Coordinator) RunCycle(ctx context.Context, trigger string) (CycleResult, error) {
	token, ok := c.acquire()
	if !ok {
		return CycleResult{}, ErrAlreadyRunning
	}
	defer c.release(token)
	return c.cycle(ctx, token, trigger), nil
}

// Trigger starts a cycle in the background and returns its run token.
func (c *Coordinator) Trigger(trigger string) (string, error) {
	token, ok := c.acquire()
	if !ok {
		return "", ErrAlreadyRunning
	}
	ctx := c.baseContext()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.release(token)
		c.cycle(ctx, token, trigger)
	}()
	return token, nil
}

// TriggerJob starts one job in the background. It does not take the cycle
// run token, so it may overlap a cycle; record claims keep the two from
// processing the same record.
func (c *Coordinator) TriggerJob(name string) error {
	job, ok := c.byName[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	ctx := c.baseContext()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runner.Run(ctx, job)
	}()
	return nil
}

// Serve runs a cycle after the initial delay and then once per interval
// until ctx is cancelled. Ticks that find a cycle in flight are skipped.
func (c *Coordinator) Serve(ctx context.Context) error {
	if c.interval <= 0 {
		return errors.New("pipeline interval must be positive")
	}
	c.mu.Lock()
	c.base = ctx
	c.mu.Unlock()

	cr := cron.New(cron.WithLogger(cron.DiscardLogger))
	cr.Schedule(cron.Every(c.interval), cron.FuncJob(func() { c.tick(ctx, TriggerCron) }))
	cr.Start()
	c.logger.Info("pipeline cron scheduled",
		logging.String(logging.FieldEventType, "pipeline_cron_scheduled"),
		logging.Duration("interval", c.interval),
		logging.Duration("initial_delay", c.initialDelay),
	)

	timer := time.NewTimer(c.initialDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
		c.tick(ctx, TriggerStartup)
		<-ctx.Done()
	}
	<-cr.Stop().Done()
	return nil
}

// Wait blocks until every background cycle and job trigger has returned.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) tick(ctx context.Context, trigger string) {
	if _, err := c.RunCycle(ctx, trigger); errors.Is(err, ErrAlreadyRunning) {
		c.logger.Info("pipeline already running, skipping",
			logging.String(logging.FieldEventType, "pipeline_skipped"),
			logging.String("trigger", trigger),
		)
	}
}

func (c *Coordinator) acquire() (string, bool) {
	token := c.newToken()
	if !c.token.CompareAndSwap(nil, &token) {
		return "", false
	}
	return token, true
}

func (c *Coordinator) release(token string) {
	current := c.token.Load()
	if current != nil && *current == token {
		c.token.CompareAndSwap(current, nil)
	}
}

func (c *Coordinator) baseContext() context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.base
}

func (c *Coordinator) cycle(ctx context.Context, token, trigger string) (result CycleResult) {
	ctx = services.WithRunToken(ctx, token)
	logger := logging.WithContext(ctx, c.logger)
	started := c.now()
	result = CycleResult{
		RunToken:  token,
		Trigger:   trigger,
		Results:   make(map[string]runner.Result, len(c.jobs)),
		StartedAt: started.UTC(),
	}
	logger.Info("pipeline start",
		logging.String(logging.FieldEventType, "pipeline_start"),
		logging.String("trigger", trigger),
	)

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("pipeline panicked: %v\n%s", p, debug.Stack())
			result.Success = false
			result.Error = err.Error()
			c.reporter.Report(ctx, "pipeline", err, map[string]string{"stage": "main"})
		}
		c.finish(ctx, logger, started, &result)
	}()

	for _, job := range c.jobs {
		if err := ctx.Err(); err != nil {
			result.Error = fmt.Sprintf("cycle interrupted before %s: %v", job.Name(), err)
			break
		}
		res := c.runner.Run(ctx, job)
		result.Results[job.Name()] = res
		if !res.Success {
			result.FailedJobs = append(result.FailedJobs, job.Name())
		}
	}
	result.Success = len(result.FailedJobs) == 0 && result.Error == ""
	return result
}

func (c *Coordinator) finish(ctx context.Context, logger *slog.Logger, started time.Time, result *CycleResult) {
	elapsed := c.now().Sub(started)
	result.Duration = fmt.Sprintf("%.1fs", elapsed.Seconds())

	finished := c.now().UTC()
	snapshot := *result
	c.mu.Lock()
	c.lastRun = &finished
	c.lastResult = &snapshot
	c.mu.Unlock()

	c.metrics.ObserveCycle(result.Success, elapsed)
	c.refreshGauges(ctx, logger)
	c.reporter.Publish(notifications.EventCycleCompleted, notifications.Payload{
		"runToken":   result.RunToken,
		"failedJobs": len(result.FailedJobs),
		"duration":   result.Duration,
	})

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "pipeline_end"),
		logging.Bool("success", result.Success),
		logging.String("duration", result.Duration),
		logging.Int("failed_jobs", len(result.FailedJobs)),
	}
	if result.Error != "" {
		attrs = append(attrs, logging.String("error", result.Error))
	}
	logger.Info("pipeline end", logging.Args(attrs...)...)
}

func (c *Coordinator) refreshGauges(ctx context.Context, logger *slog.Logger) {
	if c.store == nil || c.metrics == nil {
		return
	}
	// The cycle context may already be cancelled at shutdown.
	ctx = context.WithoutCancel(ctx)
	counts, err := c.store.Counts(ctx)
	if err != nil {
		logger.Warn("record counts unavailable", logging.Error(err))
		return
	}
	byName := make(map[string]int, len(counts))
	for status, n := range counts {
		byName[string(status)] = n
	}
	c.metrics.SetRecordCounts(byName)
	if used, err := c.store.QuotaCount(ctx, c.store.Today(c.now())); err == nil {
		c.metrics.SetQuotaUsed(used)
	}
}
