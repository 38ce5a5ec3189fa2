package describe_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"shortsfactory/internal/config"
	"shortsfactory/internal/jobs/describe"
	"shortsfactory/internal/logging"
	"shortsfactory/internal/records"
	"shortsfactory/internal/testsupport"
)

type stubCompleter struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) (string, error)
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	return s.reply(prompt)
}

func seed(t *testing.T, n int) (*config.Config, *records.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	transcript := records.Transcript{Language: "en", Words: []records.Word{{Word: "look", Start: 0, End: 0.3}, {Word: "here", Start: 0.3, End: 0.6}}}
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		testsupport.NewVideo(t, store, cfg, id, "Title "+id)
		testsupport.AdvanceTo(t, store, id, records.StatusTranscribed, transcript)
	}
	return cfg, store
}

func TestDescribeFillsBatch(t *testing.T) {
	cfg, store := seed(t, 4)
	stub := &stubCompleter{reply: func(string) (string, error) { return "  \"Wait for it 🤯\n\n#viral #fyp\"  ", nil }}
	job := describe.NewWithCompleter(cfg, store, stub, nil, logging.NewNop())

	summary, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Succeeded != 3 {
		t.Fatalf("expected batch of 3, got %+v", summary)
	}
	video := testsupport.MustGet(t, store, "a")
	if video.Description != "Wait for it 🤯\n\n#viral #fyp" {
		t.Fatalf("unexpected description %q", video.Description)
	}
	if video.Status != records.StatusTranscribed {
		t.Fatalf("description must not change status, got %s", video.Status)
	}
	if !strings.Contains(stub.prompts[0], "Original title: Title a") || !strings.Contains(stub.prompts[0], "Video transcript: look here") {
		t.Fatalf("unexpected prompt:\n%s", stub.prompts[0])
	}
	if d := testsupport.MustGet(t, store, "d"); d.Description != "" {
		t.Fatalf("fourth record should wait for the next run, got %q", d.Description)
	}
}

func TestDescribeFailureIsPerRecord(t *testing.T) {
	cfg, store := seed(t, 2)
	stub := &stubCompleter{reply: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Title a") {
			return "", errors.New("rate limited")
		}
		return "ok #viral", nil
	}}
	job := describe.NewWithCompleter(cfg, store, stub, nil, logging.NewNop())

	summary, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 1 || summary.Succeeded != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if a := testsupport.MustGet(t, store, "a"); a.Description != "" || a.Attempts != 0 {
		t.Fatalf("failed description must leave the record untouched: %+v", a)
	}
}

func TestDescribeSkipsWithoutKey(t *testing.T) {
	cfg, store := seed(t, 1)
	job := describe.New(cfg, store, nil, logging.NewNop())

	summary, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Claimed != 0 || summary.Detail == "" {
		t.Fatalf("expected skip, got %+v", summary)
	}
}

func TestBuildPromptMarksSilentClips(t *testing.T) {
	prompt := describe.BuildPrompt("Cat", "")
	if !strings.Contains(prompt, "Video transcript: (no audio)") {
		t.Fatalf("unexpected prompt %s", prompt)
	}
}
