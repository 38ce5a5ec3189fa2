package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"shortsfactory/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "editor", "ffmpeg", "compose failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"editor", "ffmpeg", "compose failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestClassifyMapsDeadlineToTimeout(t *testing.T) {
	err := services.Classify("transcribe", "whisper", fmt.Errorf("run: %w", context.DeadlineExceeded))
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
	if services.Kind(err) != "timeout" {
		t.Fatalf("unexpected kind %q", services.Kind(err))
	}
	plain := errors.New("plain")
	if got := services.Classify("transcribe", "whisper", plain); got != plain {
		t.Fatalf("expected passthrough, got %v", got)
	}
	if services.Classify("x", "y", nil) != nil {
		t.Fatal("expected nil passthrough")
	}
}

func TestFailureClassification(t *testing.T) {
	setup := services.Wrap(services.ErrConfiguration, "editor", "prepare", "face video missing", nil)
	if !services.IsSetupFailure(setup) {
		t.Fatal("expected configuration error to be a setup failure")
	}
	if services.IsPermanent(setup) {
		t.Fatal("configuration error must not be permanent for a record")
	}
	invalid := services.Wrap(services.ErrValidation, "captioner", "load transcript", "corrupt json", nil)
	if !services.IsPermanent(invalid) {
		t.Fatal("expected validation error to be permanent")
	}
	tests := map[string]error{
		"external_tool": services.Wrap(services.ErrExternalTool, "", "", "", nil),
		"not_found":     services.Wrap(services.ErrNotFound, "", "", "", nil),
		"transient":     errors.New("io"),
	}
	for want, err := range tests {
		if got := services.Kind(err); got != want {
			t.Fatalf("Kind(%v) = %q, want %q", err, got, want)
		}
	}
}
