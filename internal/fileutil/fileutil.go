// Package fileutil moves video artifacts between the stage directories.
//
// Copies land under a temporary sibling name and are renamed into place, so a
// reader globbing the destination directory never sees a partial file.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// CopyFile copies src to dst with mode 0o644, replacing dst if it exists.
func CopyFile(src, dst string) error {
	_, _, err := copyAtomic(src, dst)
	return err
}

// CopyFileVerified copies src to dst, then re-reads dst and compares its size
// and SHA-256 with what was read from src. dst is removed on mismatch.
func CopyFileVerified(src, dst string) error {
	want, wantSize, err := copyAtomic(src, dst)
	if err != nil {
		return err
	}
	got, gotSize, err := hashFile(dst)
	if err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("verify copy: %w", err)
	}
	if gotSize != wantSize || !bytes.Equal(got, want) {
		_ = os.Remove(dst)
		return fmt.Errorf("verify copy: %s does not match %s (%d of %d bytes)", dst, src, gotSize, wantSize)
	}
	return nil
}

// LinkOrCopy makes dst refer to src's content without touching src: a hard
// link when both live on one filesystem, a full copy otherwise. An existing
// dst is an error.
func LinkOrCopy(src, dst string) error {
	err := os.Link(src, dst)
	if err == nil || errors.Is(err, os.ErrExist) {
		return err
	}
	return CopyFile(src, dst)
}

// MoveFile renames src to dst, falling back to a verified copy and delete
// when they are on different filesystems.
func MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := CopyFileVerified(src, dst); err != nil {
		return fmt.Errorf("move across devices: %w", err)
	}
	return os.Remove(src)
}

// copyAtomic streams src into a hidden temp file next to dst and renames it
// into place. It returns the SHA-256 and length of the bytes read from src.
func copyAtomic(src, dst string) ([]byte, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return nil, 0, err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return nil, 0, err
	}
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}

	hasher := sha256.New()
	n, err := io.Copy(tmp, io.TeeReader(in, hasher))
	if err == nil {
		err = tmp.Chmod(0o644)
	}
	if err != nil {
		cleanup()
		return nil, 0, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, 0, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, 0, err
	}
	return hasher.Sum(nil), n, nil
}

func hashFile(path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	hasher := sha256.New()
	n, err := io.Copy(hasher, f)
	if err != nil {
		return nil, 0, err
	}
	return hasher.Sum(nil), n, nil
}
