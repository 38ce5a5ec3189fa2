// Package api is the HTTP control surface: health, manual cycle and job
// triggers, record inspection, and Prometheus metrics.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"shortsfactory/internal/logging"
	"shortsfactory/internal/pipeline"
	"shortsfactory/internal/records"
	"shortsfactory/internal/scheduler"
)

// Coordinator is the part of the pipeline the control surface drives.
type Coordinator interface {
	State() pipeline.State
	Trigger(trigger string) (string, error)
	TriggerJob(name string) error
	JobNames() []string
}

// RecordStore is the read and retry access the control surface needs.
type RecordStore interface {
	List(ctx context.Context, statuses ...records.Status) ([]*records.Video, error)
	GetByID(ctx context.Context, id string) (*records.Video, error)
	RetryFailed(ctx context.Context, id string) (records.Status, error)
}

// Options wires the handler.
type Options struct {
	Coordinator Coordinator
	Records     RecordStore
	// Schedule reports per-job timers; nil when the scheduler is disabled.
	Schedule func() []scheduler.Entry
	// Metrics serves /metrics; nil disables the route.
	Metrics http.Handler
	// Token, when set, is required as a bearer token on everything but health.
	Token  string
	Logger *slog.Logger
}

type server struct {
	opts   Options
	logger *slog.Logger
}

// NewHandler builds the chi router.
func NewHandler(opts Options) http.Handler {
	s := &server{opts: opts, logger: logging.NewComponentLogger(opts.Logger, "api")}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.NotFound(s.notFound)
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/", s.health)
	r.Get("/health", s.health)

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(opts.Token))

		r.Get("/run", s.run)
		r.Post("/run", s.run)
		r.Get("/job/{name}", s.job)
		r.Post("/job/{name}", s.job)

		r.Route("/records", func(r chi.Router) {
			r.Get("/", s.listRecords)
			r.Get("/{id}", s.getRecord)
			r.Post("/{id}/retry", s.retryRecord)
		})

		if opts.Metrics != nil {
			r.Method(http.MethodGet, "/metrics", opts.Metrics)
		}
	})
	return r
}

var endpoints = map[string]string{
	"/":                       "Health check",
	"/run":                    "Run full pipeline",
	"/job/:name":              "Run specific job",
	"/records?status=":        "List records, optionally by status",
	"/records/:id":            "Show one record",
	"POST /records/:id/retry": "Return a failed record to its last stage",
	"/metrics":                "Prometheus metrics",
}

func (s *server) notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":     "Not found",
		"endpoints": endpoints,
	})
}
