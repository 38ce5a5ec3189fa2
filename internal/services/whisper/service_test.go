package whisper_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shortsfactory/internal/services/whisper"
)

func TestTranscribeDecodesHelperOutput(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "clip.wav")
	var gotName string
	var gotArgs []string
	svc := whisper.NewService(whisper.Config{PythonBinary: "/opt/whisper/bin/python3"}, func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		script, err := os.ReadFile(args[0])
		if err != nil {
			t.Fatalf("helper script missing: %v", err)
		}
		if !strings.Contains(string(script), "WhisperModel") {
			t.Fatalf("unexpected helper script")
		}
		out := `{"words":[{"word":"Hello","start":0.1,"end":0.5},{"word":"world","start":0.6,"end":1.0}],"language":"en"}`
		return nil, os.WriteFile(args[2], []byte(out), 0o644)
	})

	transcript, err := svc.Transcribe(context.Background(), audio, filepath.Join(dir, "work"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if gotName != "/opt/whisper/bin/python3" {
		t.Fatalf("unexpected interpreter %q", gotName)
	}
	if len(gotArgs) != 4 || gotArgs[1] != audio || gotArgs[3] != whisper.DefaultModel {
		t.Fatalf("unexpected args %v", gotArgs)
	}
	if transcript.Text() != "Hello world" || transcript.Language != "en" {
		t.Fatalf("unexpected transcript %+v", transcript)
	}
	if _, err := os.Stat(gotArgs[0]); !os.IsNotExist(err) {
		t.Fatal("expected helper script to be removed")
	}
	if _, err := os.Stat(gotArgs[2]); !os.IsNotExist(err) {
		t.Fatal("expected helper output to be removed")
	}
}

func TestTranscribePropagatesHelperFailure(t *testing.T) {
	svc := whisper.NewService(whisper.Config{}, func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("ModuleNotFoundError: faster_whisper")
	})
	_, err := svc.Transcribe(context.Background(), filepath.Join(t.TempDir(), "a.wav"), "")
	if err == nil || !strings.Contains(err.Error(), "faster_whisper") {
		t.Fatalf("expected helper error, got %v", err)
	}
	if svc.Binary() != whisper.DefaultPython {
		t.Fatalf("unexpected default binary %q", svc.Binary())
	}
}

func TestTranscribeRejectsMalformedOutput(t *testing.T) {
	svc := whisper.NewService(whisper.Config{}, func(_ context.Context, _ string, args ...string) ([]byte, error) {
		return nil, os.WriteFile(args[2], []byte("not json"), 0o644)
	})
	if _, err := svc.Transcribe(context.Background(), filepath.Join(t.TempDir(), "a.wav"), ""); err == nil {
		t.Fatal("expected decode error")
	}
}
