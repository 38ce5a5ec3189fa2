package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shortsfactory/internal/jobs/collect"
	"shortsfactory/internal/records"
	"shortsfactory/internal/testsupport"
)

func TestIngestStagesInboxFileWithSidecar(t *testing.T) {
	env := setupCLITestEnv(t)
	src := filepath.Join(env.baseDir, "My Clip.mp4")
	testsupport.WriteFile(t, src, 2048)

	out, _, err := runCLI(t, []string{"ingest", src, "--title", "Satisfying press"}, env.configPath)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	requireContains(t, out, "as My_Clip")

	inbox := env.cfg.Paths.InboxDir()
	info, err := os.Stat(filepath.Join(inbox, "My_Clip.mp4"))
	if err != nil {
		t.Fatalf("expected staged file: %v", err)
	}
	if info.Size() != 2048 {
		t.Fatalf("unexpected staged size %d", info.Size())
	}
	if entries, _ := os.ReadDir(inbox); len(entries) != 2 {
		t.Fatalf("expected only the video and its sidecar in the inbox, got %v", entries)
	}
	meta, ok, err := collect.ReadSidecar(inbox, "My_Clip")
	if err != nil || !ok {
		t.Fatalf("read sidecar: ok=%v err=%v", ok, err)
	}
	if meta.Title != "Satisfying press" {
		t.Fatalf("unexpected sidecar title %q", meta.Title)
	}

	if _, _, err := runCLI(t, []string{"ingest", src}, env.configPath); err == nil {
		t.Fatal("expected a second ingest of the same id to fail")
	}
}

func TestIngestRejectsUnsupportedFiles(t *testing.T) {
	env := setupCLITestEnv(t)
	src := filepath.Join(env.baseDir, "clip.mkv")
	testsupport.WriteFile(t, src, 10)

	if _, _, err := runCLI(t, []string{"ingest", src}, env.configPath); err == nil {
		t.Fatal("expected mkv to be rejected")
	}
	if _, _, err := runCLI(t, []string{"ingest", filepath.Join(env.baseDir, "missing.mp4")}, env.configPath); err == nil {
		t.Fatal("expected missing file to be rejected")
	}

	testsupport.NewVideo(t, env.store, env.cfg, "known", "Known")
	known := filepath.Join(env.baseDir, "known.mp4")
	testsupport.WriteFile(t, known, 10)
	_, _, err := runCLI(t, []string{"ingest", known}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected existing record to be refused, got %v", err)
	}
}

func TestJobCollectorPicksUpIngestedFile(t *testing.T) {
	env := setupCLITestEnv(t)
	src := filepath.Join(env.baseDir, "clip.mp4")
	testsupport.WriteFile(t, src, 512)

	if _, _, err := runCLI(t, []string{"ingest", src, "--id", "manual_1", "--title", "Hello"}, env.configPath); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	out, _, err := runCLI(t, []string{"job", "collector"}, env.configPath)
	if err != nil {
		t.Fatalf("job collector: %v", err)
	}
	requireContains(t, out, "collector")

	video := testsupport.MustGet(t, env.store, "manual_1")
	if video.Status != records.StatusCollected || video.Title != "Hello" {
		t.Fatalf("unexpected record %+v", video)
	}
}

func TestJobRejectsUnknownName(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"job", "encoder"}, env.configPath)
	if err == nil {
		t.Fatal("expected unknown job to fail")
	}
	requireContains(t, err.Error(), "viral_finder")
}

func failVideo(t *testing.T, env *cliTestEnv, id, cause string) {
	t.Helper()
	testsupport.NewVideo(t, env.store, env.cfg, id, id)
	ctx := context.Background()
	claim, err := env.store.ClaimByID(ctx, id, records.StatusCollected, "test-run")
	if err != nil || claim == nil {
		t.Fatalf("claim %s: %v", id, err)
	}
	status, err := env.store.Release(ctx, claim, errors.New(cause), true)
	if err != nil {
		t.Fatalf("release %s: %v", id, err)
	}
	if status != records.StatusFailed {
		t.Fatalf("expected %s to fail, got %s", id, status)
	}
}

func TestStatusShowsCountsAndFailedRecords(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewVideo(t, env.store, env.cfg, "ok1", "Fine")
	failVideo(t, env, "bad1", "ffmpeg exited with status 1")

	out, _, err := runCLI(t, []string{"status", "--list", "collected"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "0/4 today")
	requireContains(t, out, "bad1")
	requireContains(t, out, "ffmpeg exited with status 1")
	requireContains(t, out, "Fine")
	requireContains(t, out, "Metricool credentials missing")

	if _, _, err := runCLI(t, []string{"status", "--list", "bogus"}, env.configPath); err == nil {
		t.Fatal("expected unknown status filter to fail")
	}
}

func TestStatusJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	failVideo(t, env, "bad1", "boom")

	out, _, err := runCLI(t, []string{"status", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var report statusReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if report.Counts[records.StatusFailed] != 1 || len(report.Failed) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Failed[0].LastError != "boom" || report.Failed[0].FailedFrom != records.StatusCollected {
		t.Fatalf("unexpected failed record %+v", report.Failed[0])
	}
	if len(report.Jobs) == 0 {
		t.Fatal("expected job readiness in the report")
	}
}

func TestRetryReturnsFailedRecords(t *testing.T) {
	env := setupCLITestEnv(t)
	failVideo(t, env, "bad1", "boom")

	out, _, err := runCLI(t, []string{"retry", "bad1"}, env.configPath)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	requireContains(t, out, "bad1 -> collected")
	if video := testsupport.MustGet(t, env.store, "bad1"); video.Status != records.StatusCollected || video.Attempts != 0 {
		t.Fatalf("unexpected record after retry %+v", video)
	}

	_, _, err = runCLI(t, []string{"retry", "bad1", "ghost"}, env.configPath)
	if !errors.Is(err, records.ErrInvalidTransition) || !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected both retry errors to be reported, got %v", err)
	}
}
