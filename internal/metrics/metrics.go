// Package metrics exposes pipeline counters and timings in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shortsfactory"

// Record outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeExhausted = "exhausted"
	OutcomeLost      = "claim_lost"
)

// Metrics owns a private registry so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	records       *prometheus.CounterVec
	jobRuns       *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	cycleRuns     *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	quotaUsed     prometheus.Gauge
	byStatus      *prometheus.GaugeVec
}

// New registers every pipeline metric plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_records_total",
			Help:      "Records processed by a stage, by outcome.",
		}, []string{"stage", "outcome"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Job runs by result.",
		}, []string{"job", "result"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of a job run.",
			Buckets:   []float64{0.1, 1, 5, 15, 60, 180, 600, 1800},
		}, []string{"job"}),
		cycleRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_runs_total",
			Help:      "Full pipeline cycles by result.",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a full pipeline cycle.",
			Buckets:   []float64{1, 10, 60, 300, 900, 1800, 3600},
		}),
		quotaUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "publish_quota_used",
			Help:      "Videos published on the current quota day.",
		}),
		byStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Stored records by status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.records,
		m.jobRuns,
		m.jobDuration,
		m.cycleRuns,
		m.cycleDuration,
		m.quotaUsed,
		m.byStatus,
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRecord(stage, outcome string) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(stage, outcome).Inc()
}

func (m *Metrics) ObserveJob(job string, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, result(success)).Inc()
	m.jobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCycle(success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.cycleRuns.WithLabelValues(result(success)).Inc()
	m.cycleDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) SetQuotaUsed(count int) {
	if m == nil {
		return
	}
	m.quotaUsed.Set(float64(count))
}

// SetRecordCounts replaces the per-status gauges.
func (m *Metrics) SetRecordCounts(counts map[string]int) {
	if m == nil {
		return
	}
	m.byStatus.Reset()
	for status, count := range counts {
		m.byStatus.WithLabelValues(status).Set(float64(count))
	}
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
