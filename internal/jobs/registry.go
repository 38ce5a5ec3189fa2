// Package jobs binds every pipeline job name to a runnable stage.Job.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"shortsfactory/internal/config"
	"shortsfactory/internal/jobs/caption"
	"shortsfactory/internal/jobs/clean"
	"shortsfactory/internal/jobs/collect"
	"shortsfactory/internal/jobs/describe"
	"shortsfactory/internal/jobs/discover"
	"shortsfactory/internal/jobs/edit"
	"shortsfactory/internal/jobs/publish"
	"shortsfactory/internal/jobs/transcribe"
	"shortsfactory/internal/media"
	"shortsfactory/internal/metrics"
	"shortsfactory/internal/notifications"
	"shortsfactory/internal/records"
	"shortsfactory/internal/stage"
	"shortsfactory/internal/stageexec"
)

// Deps carries what the jobs share.
type Deps struct {
	Config   *config.Config
	Store    *records.Store
	Reporter *notifications.Reporter
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	// Run replaces every external command; nil uses os/exec.
	Run media.Runner
}

type healthChecker interface {
	HealthCheck(context.Context) stage.Health
}

// Registry resolves job names in cycle order.
type Registry struct {
	byName map[string]stage.Job
	order  []string
}

// NewRegistry builds every job in config.JobOrder.
func NewRegistry(d Deps) *Registry {
	cfg := d.Config
	handler := func(h stage.Handler) stage.Job {
		return stageexec.NewJob(stageexec.Options{
			Logger:           d.Logger,
			Store:            d.Store,
			Reporter:         d.Reporter,
			Metrics:          d.Metrics,
			Handler:          h,
			BatchSize:        cfg.Workflow.BatchSize,
			TransformTimeout: cfg.TransformTimeout(),
		})
	}
	all := []stage.Job{
		discover.New(cfg, d.Store, d.Run, d.Logger),
		collect.New(cfg, d.Store, d.Logger),
		handler(transcribe.New(cfg, d.Run)),
		describe.New(cfg, d.Store, d.Reporter, d.Logger),
		handler(edit.New(cfg, d.Run)),
		handler(caption.New(cfg, d.Run)),
		publishJob(d),
		clean.New(cfg, d.Store, d.Reporter, d.Logger),
	}
	return newRegistry(all)
}

func publishJob(d Deps) stage.Job {
	h := publish.New(d.Config, d.Store, publish.WithReporter(d.Reporter))
	// Publishing is capped by the daily quota, not by the batch size. Upload
	// and scheduling each get the request timeout.
	return stageexec.NewJob(stageexec.Options{
		Logger:           d.Logger,
		Store:            d.Store,
		Reporter:         d.Reporter,
		Metrics:          d.Metrics,
		Handler:          h,
		BatchSize:        d.Config.Publish.MaxDaily,
		TransformTimeout: time.Duration(d.Config.Publish.RequestTimeoutSeconds) * 2 * time.Second,
	})
}

// NewRegistryFrom builds a registry over explicit jobs, in the given order.
func NewRegistryFrom(all ...stage.Job) *Registry {
	return newRegistry(all)
}

func newRegistry(all []stage.Job) *Registry {
	r := &Registry{byName: make(map[string]stage.Job, len(all))}
	for _, job := range all {
		if job == nil {
			continue
		}
		if _, dup := r.byName[job.Name()]; !dup {
			r.order = append(r.order, job.Name())
		}
		r.byName[job.Name()] = job
	}
	return r
}

// Get returns the job registered under name.
func (r *Registry) Get(name string) (stage.Job, bool) {
	job, ok := r.byName[name]
	return job, ok
}

// Names lists job names in cycle order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Ordered returns the jobs in cycle order.
func (r *Registry) Ordered() []stage.Job {
	out := make([]stage.Job, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Health collects readiness from every job that reports it.
func (r *Registry) Health(ctx context.Context) []stage.Health {
	var out []stage.Health
	for _, name := range r.order {
		if checker, ok := r.byName[name].(healthChecker); ok {
			out = append(out, checker.HealthCheck(ctx))
		}
	}
	return out
}
