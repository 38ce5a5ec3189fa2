package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopiesMatchSource(t *testing.T) {
	for name, copyFn := range map[string]func(string, string) error{
		"plain":    CopyFile,
		"verified": CopyFileVerified,
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			src := filepath.Join(dir, "clip.mp4")
			dst := filepath.Join(dir, "copy.mp4")
			if err := os.WriteFile(src, []byte("moov mdat "+name), 0o600); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(dst, []byte("stale"), 0o600); err != nil {
				t.Fatal(err)
			}
			if err := copyFn(src, dst); err != nil {
				t.Fatal(err)
			}
			if got, _ := os.ReadFile(dst); string(got) != "moov mdat "+name {
				t.Fatalf("destination holds %q", got)
			}
			if err := copyFn(filepath.Join(dir, "absent.mp4"), filepath.Join(dir, "other.mp4")); err == nil {
				t.Fatal("expected missing source to fail")
			}
		})
	}
}

func TestCopyFileLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	dst := filepath.Join(dir, "out", "dst.mp4")
	if err := os.WriteFile(src, []byte("frames"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(src, dst); err == nil {
		t.Fatal("expected a missing destination directory to fail")
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(filepath.Dir(dst))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "dst.mp4" {
		t.Fatalf("expected only the destination file, got %v", entries)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("unexpected mode %v", info.Mode().Perm())
	}
}

func TestLinkOrCopyKeepsSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a_captioned.mp4")
	dst := filepath.Join(dir, "published", "a.mp4")
	if err := os.WriteFile(src, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := LinkOrCopy(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source must remain: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "video" {
		t.Fatalf("unexpected destination %q (%v)", got, err)
	}
	if err := LinkOrCopy(src, dst); err == nil {
		t.Fatal("expected an existing destination to be refused")
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "inbox.mp4")
	dst := filepath.Join(dir, "work.mp4")
	if err := os.WriteFile(src, []byte("clip"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := MoveFile(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("expected source to be gone")
	}
	if got, err := os.ReadFile(dst); err != nil || string(got) != "clip" {
		t.Fatalf("unexpected destination %q (%v)", got, err)
	}
}
