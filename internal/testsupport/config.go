package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"shortsfactory/internal/config"
)

// ConfigOption adjusts the config NewConfig returns. root is the temp
// directory every generated path lives under.
type ConfigOption func(t testing.TB, root string, cfg *config.Config)

// NewConfig returns defaults rooted in a fresh temp directory, with jitter
// disabled and one subreddit configured. Stage directories already exist.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Paths.FaceVideo = filepath.Join(root, "face", "face.mp4")
	cfg.Paths.BackupAudio = filepath.Join(root, "audio", "backup.mp3")
	cfg.API.Bind = "127.0.0.1:0"
	cfg.Publish.MetricoolTimezone = cfg.Workflow.Timezone
	cfg.Scheduler.JitterSeconds = 0
	cfg.Discover.Subreddits = []string{"oddlysatisfying"}

	for _, opt := range opts {
		opt(t, root, &cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithMetricool sets publish credentials against a fake API at baseURL.
func WithMetricool(baseURL, uploadURL string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Publish.MetricoolToken = "token"
		cfg.Publish.MetricoolUserID = "user"
		cfg.Publish.MetricoolBlogID = "blog"
		cfg.Publish.MetricoolBaseURL = baseURL
		cfg.Publish.UploadURL = uploadURL
	}
}

func WithMaxDaily(limit int) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) { cfg.Publish.MaxDaily = limit }
}

// WithTimezone sets workflow.timezone, which also decides where the daily
// publish quota rolls over.
func WithTimezone(name string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Workflow.Timezone = name
		cfg.Publish.MetricoolTimezone = name
	}
}

func WithMaxAttempts(attempts int) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) { cfg.Workflow.MaxAttempts = attempts }
}

// WithStubbedBinaries puts no-op executables named names (ffmpeg, ffprobe,
// yt-dlp and python3 when empty) first on PATH for the rest of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	if len(names) == 0 {
		names = []string{"ffmpeg", "ffprobe", "yt-dlp", "python3"}
	}
	return func(t testing.TB, root string, _ *config.Config) {
		bin := filepath.Join(root, "bin")
		if err := os.MkdirAll(bin, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", bin, err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
