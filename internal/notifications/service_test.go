package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"testing"

	"shortsfactory/internal/config"
	"shortsfactory/internal/logging"
	"shortsfactory/internal/notifications"
)

func TestNewServiceReturnsNoopWhenUnconfigured(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventStageFailed, notifications.Payload{"stage": "editor"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "stage failed",
			event: notifications.EventStageFailed,
			payload: notifications.Payload{
				"stage":    "captioner",
				"recordID": "rd_abc",
				"error":    errors.New("ffmpeg exited 1"),
			},
			expectTitle:    "Shorts Factory - Error",
			expectMessage:  "❌ captioner failed for rd_abc: ffmpeg exited 1",
			expectTags:     "shorts,error,alert",
			expectPriority: "high",
		},
		{
			name:          "cycle with failures",
			event:         notifications.EventCycleCompleted,
			payload:       notifications.Payload{"failedJobs": 2, "duration": "3m0s"},
			expectTitle:   "Shorts Factory - Cycle Finished With Errors",
			expectMessage: "Pipeline cycle finished: 2 job(s) failed in 3m0s",
			expectTags:    "shorts,cycle,completed",
		},
		{
			name:          "published",
			event:         notifications.EventPublished,
			payload:       notifications.Payload{"title": "Cat jumps", "publishAt": "2026-01-02T10:10:00"},
			expectTitle:   "Shorts Factory - Scheduled",
			expectMessage: "📅 Scheduled Cat jumps for 2026-01-02T10:10:00",
			expectTags:    "shorts,publish,scheduled",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, _ := io.ReadAll(r.Body)
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceSkipsCleanCycles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for clean cycle: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventCycleCompleted, notifications.Payload{"failedJobs": 0}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic closed", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestEmailServiceBuildsFailureMessage(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	send := func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotTo = to
		gotMsg = string(msg)
		return nil
	}
	svc := notifications.NewEmailService(config.Notifications{
		SMTPHost:     "smtp.example.com",
		SMTPPort:     587,
		SMTPUser:     "bot@example.com",
		SMTPPassword: "secret",
		EmailTo:      "ops@example.com, dev@example.com",
	}, send)

	err := svc.Publish(context.Background(), notifications.EventStageFailed, notifications.Payload{
		"stage":    "publisher",
		"error":    errors.New("upload <failed>"),
		"recordID": "rd_1",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Fatalf("unexpected addr %q", gotAddr)
	}
	if len(gotTo) != 2 || gotTo[1] != "dev@example.com" {
		t.Fatalf("unexpected recipients %v", gotTo)
	}
	for _, want := range []string{
		"Subject: [Shorts Factory] publisher failed",
		"Content-Type: text/html",
		"upload &lt;failed&gt;",
		"rd_1",
	} {
		if !strings.Contains(gotMsg, want) {
			t.Fatalf("expected %q in message:\n%s", want, gotMsg)
		}
	}

	called := false
	quiet := notifications.NewEmailService(config.Notifications{SMTPHost: "h", SMTPPort: 1}, func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	})
	if err := quiet.Publish(context.Background(), notifications.EventPublished, nil); err != nil || called {
		t.Fatalf("email must ignore non-failure events: called=%v err=%v", called, err)
	}
}

type recordingService struct {
	mu     sync.Mutex
	events []notifications.Event
	err    error
}

func (r *recordingService) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func TestReporterDeliversAsynchronouslyAndSwallowsErrors(t *testing.T) {
	svc := &recordingService{err: errors.New("smtp down")}
	reporter := notifications.NewReporter(svc, logging.NewNop())
	reporter.Report(context.Background(), "editor", errors.New("face video missing"), map[string]string{"recordID": "x"})
	reporter.Wait()

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.events) != 1 || svc.events[0] != notifications.EventStageFailed {
		t.Fatalf("unexpected events %v", svc.events)
	}
}
