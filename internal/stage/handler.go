package stage

import (
	"context"
	"time"

	"shortsfactory/internal/records"
)

// Handler describes a stage that advances one record at a time from From to
// the status AllowedNext permits.
//
// One handler value serves every run of its job, and runs may overlap, so
// handlers keep no per-run state. Run-scoped values arrive on the context.
type Handler interface {
	Name() string
	From() records.Status
	// Prepare checks job-wide preconditions. An error aborts the whole run
	// before any record is claimed.
	Prepare(context.Context) error
	// Transform produces the record's next artifact. It must write a new file
	// rather than modify SourcePath in place.
	Transform(context.Context, *records.Video) (Result, error)
	HealthCheck(context.Context) Health
}

// Health is a handler's own view of whether it could run right now.
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

func Healthy(name string) Health { return Health{Name: name, Ready: true} }

// Unhealthy carries the reason shown by status and logged at startup.
func Unhealthy(name, reason string) Health { return Health{Name: name, Detail: reason} }

// Result is what a successful transform hands to the commit.
type Result struct {
	// Artifact is the new backing file; empty keeps the current one.
	Artifact      string
	Transcription *string
	Description   *string
	PublishedAt   *time.Time
	// PostAt is when an external post made by the transform goes live.
	PostAt *time.Time
	// Note is logged with the completion line.
	Note string
}

// Limiter caps how many records a run may claim, beyond the batch size.
type Limiter interface {
	Limit(context.Context) (int, error)
}

// Committed is implemented by handlers that need to act once the new state is durable.
type Committed interface {
	AfterCommit(context.Context, *records.Video, Result)
}

// Metered is implemented by handlers whose records each use one slot of a
// daily allowance. The slot is reserved together with the claim and
// returned when the record is released.
type Metered interface {
	QuotaCharge(context.Context) records.QuotaCharge
}

// Job is any unit the scheduler, the coordinator, and the control surface can run by name.
type Job interface {
	Name() string
	Run(context.Context) (Summary, error)
}

// Summary counts what a job run did.
type Summary struct {
	Claimed   int    `json:"claimed"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Detail    string `json:"detail,omitempty"`
}

// Add folds another summary into s.
func (s *Summary) Add(other Summary) {
	s.Claimed += other.Claimed
	s.Succeeded += other.Succeeded
	s.Failed += other.Failed
	s.Skipped += other.Skipped
}

// JobFunc adapts a function to Job.
type JobFunc struct {
	JobName string
	Fn      func(context.Context) (Summary, error)
}

func (j JobFunc) Name() string { return j.JobName }

func (j JobFunc) Run(ctx context.Context) (Summary, error) { return j.Fn(ctx) }
