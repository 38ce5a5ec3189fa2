package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"shortsfactory/internal/api"
	"shortsfactory/internal/config"
	"shortsfactory/internal/daemon"
	"shortsfactory/internal/deps"
	"shortsfactory/internal/jobs"
	"shortsfactory/internal/logging"
	"shortsfactory/internal/media"
	"shortsfactory/internal/metrics"
	"shortsfactory/internal/notifications"
	"shortsfactory/internal/pipeline"
	"shortsfactory/internal/preflight"
	"shortsfactory/internal/records"
	"shortsfactory/internal/runner"
	"shortsfactory/internal/scheduler"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// App is the fully wired pipeline shared by the daemon and one-shot commands.
type App struct {
	Config      *config.Config
	Store       *records.Store
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Reporter    *notifications.Reporter
	Registry    *jobs.Registry
	Runner      *runner.Runner
	Coordinator *pipeline.Coordinator
}

// Build wires every job against store. run replaces external commands; nil
// uses os/exec.
func Build(cfg *config.Config, store *records.Store, logger *slog.Logger, run media.Runner) *App {
	m := metrics.New()
	reporter := notifications.NewReporter(notifications.NewService(cfg), logger)
	registry := jobs.NewRegistry(jobs.Deps{
		Config:   cfg,
		Store:    store,
		Reporter: reporter,
		Metrics:  m,
		Logger:   logger,
		Run:      run,
	})
	jobRunner := runner.New(logger,
		runner.WithTimeout(cfg.JobTimeout()),
		runner.WithMetrics(m),
		runner.WithReporter(reporter),
	)
	coordinator := pipeline.New(cfg, registry.Ordered(), jobRunner, logger,
		pipeline.WithMetrics(m),
		pipeline.WithReporter(reporter),
		pipeline.WithStore(store),
	)
	return &App{
		Config:      cfg,
		Store:       store,
		Logger:      logger,
		Metrics:     m,
		Reporter:    reporter,
		Registry:    registry,
		Runner:      jobRunner,
		Coordinator: coordinator,
	}
}

// NewLogger builds the process logger, letting a command-line level win over
// the configured one.
func NewLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	outputs := []string{"stdout"}
	if file := strings.TrimSpace(cfg.Logging.File); file != "" {
		outputs = append(outputs, file)
	}
	return logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
		Development: opts.Development,
		Rotation: logging.Rotation{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		},
	})
}

// Run starts the shortsfactory daemon runtime loop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := NewLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	logDependencySnapshot(logger, cfg)
	logPreflight(signalCtx, logger, cfg)

	store, err := records.Open(cfg)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer store.Close()

	app := Build(cfg, store, logger, nil)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(cfg, app.Registry.Ordered(), app.Runner, logger)
		if err != nil {
			return fmt.Errorf("create scheduler: %w", err)
		}
	}

	apiOpts := api.Options{
		Coordinator: app.Coordinator,
		Records:     store,
		Metrics:     app.Metrics.Handler(),
		Token:       cfg.API.Token,
		Logger:      logger,
	}
	if sched != nil {
		apiOpts.Schedule = sched.Entries
	}

	d, err := daemon.New(daemon.Options{
		Config:      cfg,
		Store:       store,
		Coordinator: app.Coordinator,
		Scheduler:   sched,
		Reporter:    app.Reporter,
		Handler:     api.NewHandler(apiOpts),
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	return d.Run(signalCtx)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("publish_configured", cfg.PublishConfigured()),
		logging.Bool("llm_key_present", strings.TrimSpace(cfg.LLM.APIKey) != ""),
		logging.Bool("email_configured", cfg.EmailConfigured()),
		logging.Bool("discover_enabled", cfg.Discover.Enabled),
		logging.Bool("scheduler_enabled", cfg.Scheduler.Enabled),
	}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		key := strings.ToLower(strings.ReplaceAll(status.Name, "-", "_"))
		attrs = append(attrs, logging.Bool(key+"_available", status.Available))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, failed := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logger.Warn("preflight check failed",
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldImpact, "jobs depending on this check report setup failures"),
		)
	}
}
