package media_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"shortsfactory/internal/media"
)

func TestTailKeepsEnd(t *testing.T) {
	got := media.Tail([]byte("  abcdefghij  "), 4)
	if got != "...ghij" {
		t.Fatalf("unexpected tail %q", got)
	}
	if media.Tail([]byte("ok\n"), 10) != "ok" {
		t.Fatal("short output must be returned whole")
	}
}

func TestExecRunnerReportsDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := media.ExecRunner(ctx, "sleep", "5")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestExecRunnerIncludesOutputOnFailure(t *testing.T) {
	_, err := media.ExecRunner(context.Background(), "sh", "-c", "echo broken pipe >&2; exit 3")
	if err == nil || !strings.Contains(err.Error(), "broken pipe") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}
