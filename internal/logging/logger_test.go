package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shortsfactory/internal/logging"
	"shortsfactory/internal/services"
)

func TestNewJSONLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "shorts.log")
	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("cycle finished", logging.String(logging.FieldRunToken, "tok-1"), logging.Int("published", 2))
	logger.Debug("hidden")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %q", len(lines), data)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["msg"] != "cycle finished" || entry["level"] != "info" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["run_token"] != "tok-1" {
		t.Fatalf("expected run token attribute, got %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", entry)
	}
}

func TestConsoleLoggerIncludesComponentAndAttrs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logging.NewComponentLogger(logger, "captioner").Info("captions burned", logging.String(logging.FieldRecordID, "rd_1"), logging.String("title", "two words"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	for _, want := range []string{"INFO", "captioner: captions burned", "record_id=rd_1", `title="two words"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "\033[") {
		t.Fatalf("file output must not be colorized: %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWithContextAddsIdentifiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctx.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := services.WithRecordID(context.Background(), "rd_9")
	ctx = services.WithStage(ctx, "editor")
	logging.WithContext(ctx, logger).Info("composed")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !bytes.Contains(data, []byte(`"record_id":"rd_9"`)) || !bytes.Contains(data, []byte(`"stage":"editor"`)) {
		t.Fatalf("expected context identifiers, got %s", data)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logging.WarnWithContext(logger, "upload failed", "publish_upload_failed",
		logging.Error(errors.New("503")),
		logging.String(logging.FieldImpact, "video stays captioned"),
	)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["event_type"] != "publish_upload_failed" {
		t.Fatalf("unexpected event type: %v", entry)
	}
	if entry["impact"] != "video stays captioned" {
		t.Fatalf("caller impact must win: %v", entry)
	}
	if entry["error_hint"] == nil {
		t.Fatalf("expected default error hint: %v", entry)
	}
}

func TestNopLoggerIsSafe(t *testing.T) {
	logging.NewNop().Error("ignored")
	logging.WarnWithContext(nil, "ignored", "x")
	logging.NewComponentLogger(nil, "x").Info("ignored")
}
