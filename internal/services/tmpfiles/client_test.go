package tmpfiles_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"shortsfactory/internal/services/tmpfiles"
	"shortsfactory/internal/testsupport"
)

func TestUploadSendsMultipartFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abc_captioned.mp4")
	testsupport.WriteFile(t, path, 4096)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "abc_captioned.mp4" || len(data) != 4096 {
			t.Errorf("unexpected upload %s (%d bytes)", header.Filename, len(data))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data":   map[string]string{"url": "https://tmpfiles.org/123/abc_captioned.mp4"},
		})
	}))
	defer server.Close()

	url, err := tmpfiles.NewClient(server.URL, 0).Upload(context.Background(), path)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://tmpfiles.org/dl/123/abc_captioned.mp4" {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestUploadRejectsFailureStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.mp4")
	testsupport.WriteFile(t, path, 10)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = w.Write([]byte(`{"status":"error"}`))
	}))
	defer server.Close()

	if _, err := tmpfiles.NewClient(server.URL, 0).Upload(context.Background(), path); err == nil {
		t.Fatal("expected rejection")
	}
}

func TestUploadMissingFile(t *testing.T) {
	if _, err := tmpfiles.NewClient("http://127.0.0.1:1", 0).Upload(context.Background(), filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Fatal("expected open error")
	}
}

func TestDirectURLIsIdempotent(t *testing.T) {
	if got := tmpfiles.DirectURL("https://tmpfiles.org/dl/1/a.mp4"); got != "https://tmpfiles.org/dl/1/a.mp4" {
		t.Fatalf("unexpected %q", got)
	}
}
