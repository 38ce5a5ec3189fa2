package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"shortsfactory/internal/config"
	"shortsfactory/internal/logging"
	"shortsfactory/internal/notifications"
	"shortsfactory/internal/pipeline"
	"shortsfactory/internal/records"
	"shortsfactory/internal/scheduler"
)

const (
	shutdownTimeout = 30 * time.Second
	httpStopTimeout = 5 * time.Second
)

// Options wires a Daemon.
type Options struct {
	Config      *config.Config
	Store       *records.Store
	Coordinator *pipeline.Coordinator
	// Scheduler is nil when per-job timers are disabled.
	Scheduler *scheduler.Scheduler
	Reporter  *notifications.Reporter
	// Handler serves the control surface; nil disables the listener.
	Handler http.Handler
	Logger  *slog.Logger
}

// Daemon owns the single-instance lock and the lifecycle of the coordinator,
// the scheduler, and the HTTP control surface.
type Daemon struct {
	opts     Options
	logger   *slog.Logger
	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	serving sync.WaitGroup

	server   *http.Server
	listener net.Listener
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Address      string
	DatabasePath string
	LockFilePath string
}

// New validates the wiring without acquiring anything.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Store == nil || opts.Coordinator == nil {
		return nil, errors.New("daemon requires config, store, and coordinator")
	}
	lockPath := opts.Config.Paths.LockPath()
	return &Daemon{
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "daemon"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start takes the lock, recovers abandoned claims, and starts every loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another shortsfactory daemon instance is already running")
	}

	if err := d.recoverClaims(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	if d.opts.Handler != nil {
		if err := d.listen(); err != nil {
			_ = d.lock.Unlock()
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if d.opts.Scheduler != nil {
		d.opts.Scheduler.Start(runCtx)
	}
	d.serving.Add(1)
	go func() {
		defer d.serving.Done()
		if err := d.opts.Coordinator.Serve(runCtx); err != nil {
			d.logger.Error("pipeline cron stopped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "pipeline_cron_failed"),
				logging.String(logging.FieldImpact, "full cycles only run on manual trigger"),
			)
		}
	}()

	d.running.Store(true)
	d.logger.Info("shortsfactory daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("address", d.Addr()),
		logging.Bool("scheduler", d.opts.Scheduler != nil),
	)
	return nil
}

// Stop cancels running work, waits for it within the shutdown timeout, and
// releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}

	if d.server != nil {
		httpCtx, cancel := context.WithTimeout(context.Background(), httpStopTimeout)
		if err := d.server.Shutdown(httpCtx); err != nil {
			d.logger.Warn("api server shutdown incomplete", logging.Error(err))
		}
		cancel()
		d.server = nil
		d.listener = nil
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if d.opts.Scheduler != nil {
		d.opts.Scheduler.Stop(stopCtx)
	}
	done := make(chan struct{})
	go func() {
		d.serving.Wait()
		d.opts.Coordinator.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-stopCtx.Done():
		d.logger.Warn("pipeline did not stop before shutdown timeout",
			logging.String(logging.FieldEventType, "daemon_stop_timeout"),
			logging.String(logging.FieldImpact, "claims left behind are released at next startup"),
		)
	}
	d.opts.Reporter.Wait()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("shortsfactory daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Run starts the daemon and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	d.logger.Info("shortsfactory daemon shutting down")
	d.Stop()
	return nil
}

// Addr returns the bound control surface address, or "" when not listening.
func (d *Daemon) Addr() string {
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Address:      d.Addr(),
		DatabasePath: d.opts.Store.Path(),
		LockFilePath: d.lockPath,
	}
}

// recoverClaims returns records left in a processing marker by a crashed
// run to the status they were claimed from.
func (d *Daemon) recoverClaims(ctx context.Context) error {
	cutoff := time.Now().Add(-d.opts.Config.ClaimTimeout())
	released, err := d.opts.Store.ReleaseStaleClaims(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("release stale claims: %w", err)
	}
	if released > 0 {
		d.logger.Warn("released abandoned claims",
			logging.String(logging.FieldEventType, "stale_claims_released"),
			logging.Int64("count", released),
			logging.String(logging.FieldImpact, "those records will be processed again"),
		)
	}
	return nil
}

func (d *Daemon) listen() error {
	bind := strings.TrimSpace(d.opts.Config.API.Bind)
	if bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	d.listener = listener
	d.server = &http.Server{
		Handler:           d.opts.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	server := d.server
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("api server error", logging.Error(err))
		}
	}()
	d.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}
