package runner_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"shortsfactory/internal/logging"
	"shortsfactory/internal/metrics"
	"shortsfactory/internal/notifications"
	"shortsfactory/internal/runner"
	"shortsfactory/internal/services"
	"shortsfactory/internal/stage"
)

type capture struct {
	mu       sync.Mutex
	payloads []notifications.Payload
}

func (c *capture) Publish(_ context.Context, _ notifications.Event, payload notifications.Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func newRunner(opts ...runner.Option) (*runner.Runner, *capture, *notifications.Reporter) {
	svc := &capture{}
	reporter := notifications.NewReporter(svc, logging.NewNop())
	all := append([]runner.Option{runner.WithReporter(reporter), runner.WithMetrics(metrics.New())}, opts...)
	return runner.New(logging.NewNop(), all...), svc, reporter
}

func TestRunReturnsSummaryOnSuccess(t *testing.T) {
	r, svc, reporter := newRunner()
	job := stage.JobFunc{JobName: "editor", Fn: func(context.Context) (stage.Summary, error) {
		return stage.Summary{Claimed: 2, Succeeded: 1, Failed: 1}, nil
	}}

	res := r.Run(context.Background(), job)
	reporter.Wait()

	if !res.Success || res.Error != "" {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Job != "editor" || res.Summary.Succeeded != 1 || res.Summary.Failed != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if !strings.HasSuffix(res.Elapsed, "s") {
		t.Fatalf("expected elapsed seconds, got %q", res.Elapsed)
	}
	if svc.count() != 0 {
		t.Fatal("successful runs must not be reported")
	}
}

func TestRunReducesErrorsToFailure(t *testing.T) {
	r, svc, reporter := newRunner()
	job := stage.JobFunc{JobName: "publisher", Fn: func(context.Context) (stage.Summary, error) {
		return stage.Summary{}, services.Wrap(services.ErrConfiguration, "publisher", "prepare", "metricool credentials missing", nil)
	}}

	res := r.Run(context.Background(), job)
	reporter.Wait()

	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "metricool credentials missing") {
		t.Fatalf("unexpected error %q", res.Error)
	}
	if svc.count() != 1 {
		t.Fatalf("expected one report, got %d", svc.count())
	}
}

func TestRunRecoversPanics(t *testing.T) {
	r, svc, reporter := newRunner()
	job := stage.JobFunc{JobName: "captioner", Fn: func(context.Context) (stage.Summary, error) {
		var m map[string]int
		m["boom"]++
		return stage.Summary{}, nil
	}}

	res := r.Run(context.Background(), job)
	reporter.Wait()

	if res.Success {
		t.Fatal("expected panic to become a failure")
	}
	if !strings.Contains(res.Error, runner.ErrPanic.Error()) {
		t.Fatalf("expected panic marker, got %q", res.Error)
	}
	if svc.count() != 1 {
		t.Fatalf("expected panic to be reported, got %d", svc.count())
	}
}

func TestRunAppliesTimeout(t *testing.T) {
	r, _, reporter := newRunner(runner.WithTimeout(20 * time.Millisecond))
	job := stage.JobFunc{JobName: "viral_finder", Fn: func(ctx context.Context) (stage.Summary, error) {
		<-ctx.Done()
		return stage.Summary{}, errors.New("download interrupted")
	}}

	res := r.Run(context.Background(), job)
	reporter.Wait()

	if res.Success {
		t.Fatal("expected timeout failure")
	}
	if !strings.Contains(res.Error, "job timeout exceeded") {
		t.Fatalf("expected timeout classification, got %q", res.Error)
	}
}
