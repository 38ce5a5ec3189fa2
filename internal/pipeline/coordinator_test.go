package pipeline_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"shortsfactory/internal/config"
	"shortsfactory/internal/logging"
	"shortsfactory/internal/metrics"
	"shortsfactory/internal/pipeline"
	"shortsfactory/internal/runner"
	"shortsfactory/internal/stage"
	"shortsfactory/internal/testsupport"
)

type trace struct {
	mu   sync.Mutex
	runs []string
}

func (tr *trace) job(name string, err error) stage.Job {
	return stage.JobFunc{JobName: name, Fn: func(context.Context) (stage.Summary, error) {
		tr.mu.Lock()
		tr.runs = append(tr.runs, name)
		tr.mu.Unlock()
		return stage.Summary{Succeeded: 1}, err
	}}
}

func (tr *trace) names() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.runs...)
}

func newCoordinator(t *testing.T, jobs []stage.Job, opts ...pipeline.Option) *pipeline.Coordinator {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.CronIntervalMinutes = 15
	return pipeline.New(cfg, jobs, runner.New(logging.NewNop()), logging.NewNop(), opts...)
}

func TestRunCycleRunsJobsInOrderAndKeepsGoing(t *testing.T) {
	tr := &trace{}
	c := newCoordinator(t, []stage.Job{
		tr.job(config.JobViralFinder, nil),
		tr.job(config.JobEditor, errors.New("ffmpeg crashed")),
		tr.job(config.JobCleaner, nil),
	}, pipeline.WithTokenSource(func() string { return "tok-1" }))

	res, err := c.RunCycle(context.Background(), pipeline.TriggerManual)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if got := strings.Join(tr.names(), ","); got != "viral_finder,editor,cleaner" {
		t.Fatalf("unexpected order %q", got)
	}
	if res.Success {
		t.Fatal("expected cycle with a failed job to be unsuccessful")
	}
	if len(res.FailedJobs) != 1 || res.FailedJobs[0] != config.JobEditor {
		t.Fatalf("unexpected failed jobs %v", res.FailedJobs)
	}
	if !res.Results[config.JobCleaner].Success || res.Results[config.JobEditor].Error != "ffmpeg crashed" {
		t.Fatalf("unexpected per-job results %+v", res.Results)
	}

	st := c.State()
	if st.IsRunning {
		t.Fatal("expected idle coordinator after cycle")
	}
	if st.LastRun == nil || st.LastResult == nil || st.LastResult.RunToken != "tok-1" {
		t.Fatalf("expected last result to be recorded, got %+v", st)
	}
	if st.CronInterval != "15 minutes" {
		t.Fatalf("unexpected cron interval %q", st.CronInterval)
	}
}

func TestCycleIsSingleFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	blocking := stage.JobFunc{JobName: config.JobTranscribe, Fn: func(context.Context) (stage.Summary, error) {
		close(started)
		<-release
		return stage.Summary{}, nil
	}}
	c := newCoordinator(t, []stage.Job{blocking})

	token, err := c.Trigger(pipeline.TriggerManual)
	if err != nil || token == "" {
		t.Fatalf("Trigger: token=%q err=%v", token, err)
	}
	<-started

	if _, err := c.Trigger(pipeline.TriggerManual); !errors.Is(err, pipeline.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning from Trigger, got %v", err)
	}
	if _, err := c.RunCycle(context.Background(), pipeline.TriggerCron); !errors.Is(err, pipeline.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning from RunCycle, got %v", err)
	}
	st := c.State()
	if !st.IsRunning || st.RunToken != token {
		t.Fatalf("expected running state with token %q, got %+v", token, st)
	}

	close(release)
	c.Wait()

	st = c.State()
	if st.IsRunning || st.RunToken != "" {
		t.Fatalf("expected token to be released, got %+v", st)
	}
	if st.LastResult == nil || st.LastResult.RunToken != token || !st.LastResult.Success {
		t.Fatalf("unexpected last result %+v", st.LastResult)
	}
	if _, err := c.RunCycle(context.Background(), pipeline.TriggerManual); err != nil {
		t.Fatalf("expected a new cycle to be accepted, got %v", err)
	}
}

func TestTriggerJobValidatesName(t *testing.T) {
	tr := &trace{}
	c := newCoordinator(t, []stage.Job{tr.job(config.JobCollector, nil)})

	if err := c.TriggerJob("bogus"); !errors.Is(err, pipeline.ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}
	if err := c.TriggerJob(config.JobCollector); err != nil {
		t.Fatalf("TriggerJob: %v", err)
	}
	c.Wait()
	if got := tr.names(); len(got) != 1 || got[0] != config.JobCollector {
		t.Fatalf("expected collector to run once, got %v", got)
	}
	if c.State().LastResult != nil {
		t.Fatal("single job triggers must not record a cycle result")
	}
}

func TestCycleRefreshesGauges(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewVideo(t, store, cfg, "abc", "Hello")
	m := metrics.New()

	c := pipeline.New(cfg, nil, runner.New(logging.NewNop()), logging.NewNop(),
		pipeline.WithStore(store), pipeline.WithMetrics(m))
	if _, err := c.RunCycle(context.Background(), pipeline.TriggerManual); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`shortsfactory_records{status="collected"} 1`,
		`shortsfactory_cycle_runs_total{result="success"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in exposition", want)
		}
	}
}

func TestServeRunsStartupCycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.InitialRunDelaySeconds = 0
	ran := make(chan struct{}, 1)
	job := stage.JobFunc{JobName: config.JobCollector, Fn: func(context.Context) (stage.Summary, error) {
		select {
		case ran <- struct{}{}:
		default:
		}
		return stage.Summary{}, nil
	}}
	c := pipeline.New(cfg, []stage.Job{job}, runner.New(logging.NewNop()), logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx) }()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("startup cycle did not run")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if st := c.State(); st.LastResult == nil || st.LastResult.Trigger != pipeline.TriggerStartup {
		t.Fatalf("expected startup cycle result, got %+v", st.LastResult)
	}
}
