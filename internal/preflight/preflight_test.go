package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"shortsfactory/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("disk", dir, 1); !result.Passed {
		t.Fatalf("expected temp dir to have 1 MiB free: %s", result.Detail)
	}
	if result := CheckFreeSpace("disk", dir, 1<<50); result.Passed {
		t.Fatal("expected failure for absurd requirement")
	}
	if result := CheckFreeSpace("disk", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected statfs failure for missing path")
	}
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "face.mp4")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckFile("face", f); !result.Passed {
		t.Fatalf("expected pass: %s", result.Detail)
	}
	if result := CheckFile("face", dir); result.Passed {
		t.Fatal("expected failure for directory")
	}
	if result := CheckFile("face", filepath.Join(dir, "none.mp4")); result.Passed {
		t.Fatal("expected failure for missing file")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReportsMissingAssetsAndCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.FaceVideo = filepath.Join(cfg.Paths.DataDir, "face", "face.mp4")
	cfg.Media.MinFreeDiskMiB = 1

	results := RunAll(context.Background(), &cfg)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	failed := Failed(results)
	names := map[string]bool{}
	for _, r := range failed {
		names[r.Name] = true
	}
	if !names["Face video"] || !names["Metricool"] || !names["Caption LLM"] {
		t.Fatalf("unexpected failures %+v", failed)
	}
	if names["Data directory"] || names["Free space"] {
		t.Fatalf("data root checks should pass: %+v", failed)
	}
}
