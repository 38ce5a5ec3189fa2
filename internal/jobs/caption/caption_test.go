package caption_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shortsfactory/internal/config"
	"shortsfactory/internal/jobs/caption"
	"shortsfactory/internal/logging"
	"shortsfactory/internal/records"
	"shortsfactory/internal/stageexec"
	"shortsfactory/internal/testsupport"
)

func setup(t *testing.T, transcript records.Transcript) (*config.Config, *records.Store, *testsupport.FakeMedia) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewVideo(t, store, cfg, "abc", "Hello")
	testsupport.AdvanceTo(t, store, "abc", records.StatusEdited, transcript)
	return cfg, store, testsupport.NewFakeMedia()
}

func runCaptioner(t *testing.T, cfg *config.Config, store *records.Store, fake *testsupport.FakeMedia) {
	t.Helper()
	_, err := stageexec.Run(context.Background(), stageexec.Options{
		Logger:  logging.NewNop(),
		Store:   store,
		Handler: caption.New(cfg, fake.Run),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func assScripts(t *testing.T, cfg *config.Config) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(cfg.Paths.TempDir(), "*.ass"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	return matches
}

func TestCaptionBurnsSubtitles(t *testing.T) {
	transcript := records.Transcript{Language: "en", Words: words("hello", 0.0, 0.5, "world", 0.5, 1.0, "test", 1.0, 1.4)}
	cfg, store, fake := setup(t, transcript)

	runCaptioner(t, cfg, store, fake)

	video := testsupport.MustGet(t, store, "abc")
	if video.Status != records.StatusCaptioned {
		t.Fatalf("expected captioned, got %s", video.Status)
	}
	if video.SourcePath != caption.OutputPath(cfg, "abc") {
		t.Fatalf("unexpected source path %s", video.SourcePath)
	}
	calls := fake.CallsTo("ffmpeg")
	if len(calls) != 1 || !strings.Contains(calls[0].Joined(), "ass=") {
		t.Fatalf("expected one subtitle burn, got %+v", calls)
	}
	if left := assScripts(t, cfg); len(left) != 0 {
		t.Fatalf("subtitle script left behind: %v", left)
	}
}

func TestCaptionCopiesClipsWithoutSpeech(t *testing.T) {
	cfg, store, fake := setup(t, records.Transcript{Language: "en", Words: words("[Music]", 0.0, 10.0)})
	edited := testsupport.MustGet(t, store, "abc")
	original, err := os.ReadFile(edited.SourcePath)
	if err != nil {
		t.Fatalf("read source: %v", err)
	}

	runCaptioner(t, cfg, store, fake)

	video := testsupport.MustGet(t, store, "abc")
	if video.Status != records.StatusCaptioned {
		t.Fatalf("expected captioned, got %s", video.Status)
	}
	if len(fake.CallsTo("ffmpeg")) != 0 {
		t.Fatal("ffmpeg must not run for clips without speech")
	}
	copied, err := os.ReadFile(video.SourcePath)
	if err != nil {
		t.Fatalf("read captioned output: %v", err)
	}
	if len(copied) != len(original) {
		t.Fatalf("expected byte copy, got %d bytes want %d", len(copied), len(original))
	}
}

func TestCaptionBurnFailureRemovesScript(t *testing.T) {
	transcript := records.Transcript{Language: "en", Words: words("hello", 0.0, 0.5)}
	cfg, store, fake := setup(t, transcript)
	fake.Fail = map[string]error{"ffmpeg": errors.New("Unable to open subtitles")}

	runCaptioner(t, cfg, store, fake)

	video := testsupport.MustGet(t, store, "abc")
	if video.Status != records.StatusEdited || video.Attempts != 1 {
		t.Fatalf("expected edited with one attempt, got %s attempts=%d", video.Status, video.Attempts)
	}
	if left := assScripts(t, cfg); len(left) != 0 {
		t.Fatalf("subtitle script left behind: %v", left)
	}
	if _, err := os.Stat(caption.OutputPath(cfg, "abc")); !os.IsNotExist(err) {
		t.Fatal("expected partial output to be discarded")
	}
}
