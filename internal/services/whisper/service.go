package whisper

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shortsfactory/internal/media"
	"shortsfactory/internal/records"
)

//go:embed transcribe.py
var script string

const (
	DefaultModel  = "base"
	DefaultPython = "python3"
)

// Config captures runtime settings for transcription.
type Config struct {
	// PythonBinary is an interpreter with faster-whisper installed.
	PythonBinary string
	// Model is the faster-whisper model name (e.g. "base", "small").
	Model string
}

// Service runs the embedded faster-whisper helper.
type Service struct {
	cfg Config
	run media.Runner
}

// NewService creates a transcription service; run may be nil.
func NewService(cfg Config, run media.Runner) *Service {
	if strings.TrimSpace(cfg.PythonBinary) == "" {
		cfg.PythonBinary = DefaultPython
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	return &Service{cfg: cfg, run: media.OrDefault(run)}
}

// Model returns the configured model name for logging.
func (s *Service) Model() string { return s.cfg.Model }

// Binary returns the interpreter used to run the helper.
func (s *Service) Binary() string { return s.cfg.PythonBinary }

// Transcribe recognises speech in a 16kHz mono WAV and returns word-level
// timings. workDir receives the helper script and its JSON output; both are
// removed before returning.
func (s *Service) Transcribe(ctx context.Context, audioPath, workDir string) (records.Transcript, error) {
	if audioPath == "" {
		return records.Transcript{}, errors.New("transcribe: audio path required")
	}
	if workDir == "" {
		workDir = filepath.Dir(audioPath)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return records.Transcript{}, fmt.Errorf("transcribe: ensure work dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	scriptPath := filepath.Join(workDir, base+".whisper.py")
	outputPath := filepath.Join(workDir, base+".words.json")
	defer os.Remove(scriptPath)
	defer os.Remove(outputPath)

	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		return records.Transcript{}, fmt.Errorf("transcribe: write helper: %w", err)
	}
	if _, err := s.run(ctx, s.cfg.PythonBinary, Args(scriptPath, audioPath, outputPath, s.cfg.Model)...); err != nil {
		return records.Transcript{}, fmt.Errorf("whisper: %w", err)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return records.Transcript{}, fmt.Errorf("whisper: read output: %w", err)
	}
	transcript, err := records.ParseTranscript(string(data))
	if err != nil {
		return records.Transcript{}, fmt.Errorf("whisper: %w", err)
	}
	return transcript, nil
}

// Args returns the interpreter arguments for one transcription.
func Args(scriptPath, audioPath, outputPath, model string) []string {
	return []string{scriptPath, audioPath, outputPath, model}
}
