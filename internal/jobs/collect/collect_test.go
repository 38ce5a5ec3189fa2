package collect_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"shortsfactory/internal/jobs/collect"
	"shortsfactory/internal/logging"
	"shortsfactory/internal/records"
	"shortsfactory/internal/testsupport"
)

func TestCollectIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	inbox := cfg.Paths.InboxDir()
	testsupport.WriteFile(t, filepath.Join(inbox, "abc.mp4"), 4096)
	if err := collect.WriteSidecar(inbox, "abc", collect.Sidecar{Title: "Hello"}); err != nil {
		t.Fatalf("WriteSidecar: %v", err)
	}
	job := collect.New(cfg, store, logging.NewNop())

	summary, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("expected one record, got %+v", summary)
	}
	video := testsupport.MustGet(t, store, "abc")
	if video.Status != records.StatusCollected || video.Title != "Hello" {
		t.Fatalf("unexpected record %+v", video)
	}
	if video.SourcePath != filepath.Join(cfg.Paths.WorkDir(), "abc.mp4") {
		t.Fatalf("unexpected source path %s", video.SourcePath)
	}
	for _, gone := range []string{filepath.Join(inbox, "abc.mp4"), collect.SidecarPath(inbox, "abc")} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Fatalf("expected %s to be consumed", gone)
		}
	}

	second, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.Succeeded != 0 || second.Claimed != 0 {
		t.Fatalf("second run must create nothing, got %+v", second)
	}
	counts, err := store.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts[records.StatusCollected] != 1 {
		t.Fatalf("expected exactly one record, got %v", counts)
	}
}

func TestCollectDiscardsDuplicateDrop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewVideo(t, store, cfg, "abc", "Hello")
	testsupport.AdvanceTo(t, store, "abc", records.StatusTranscribed, records.EmptyTranscript("en"))
	dup := filepath.Join(cfg.Paths.InboxDir(), "abc.mp4")
	testsupport.WriteFile(t, dup, 100)

	summary, err := collect.New(cfg, store, logging.NewNop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Skipped != 1 {
		t.Fatalf("expected duplicate to be skipped, got %+v", summary)
	}
	if _, err := os.Stat(dup); !os.IsNotExist(err) {
		t.Fatal("expected duplicate inbox file to be discarded")
	}
	video := testsupport.MustGet(t, store, "abc")
	if video.Status != records.StatusTranscribed {
		t.Fatalf("existing record must be untouched, got %s", video.Status)
	}
	if info, err := os.Stat(video.SourcePath); err != nil || info.Size() != 2048 {
		t.Fatalf("existing work file must be untouched: %v", err)
	}
}

func TestCollectFallsBackToIDTitle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	inbox := cfg.Paths.InboxDir()
	testsupport.WriteFile(t, filepath.Join(inbox, "plain.mp4"), 10)
	testsupport.WriteFile(t, filepath.Join(inbox, "broken.mp4"), 10)
	if err := os.WriteFile(collect.SidecarPath(inbox, "broken"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}

	if _, err := collect.New(cfg, store, logging.NewNop()).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, id := range []string{"plain", "broken"} {
		if video := testsupport.MustGet(t, store, id); video.Title != id {
			t.Fatalf("expected title %q, got %q", id, video.Title)
		}
	}
}
