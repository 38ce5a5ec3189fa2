package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shortsfactory/internal/config"
)

const userAgent = "ShortsFactory/1.0"

// Event identifies what happened.
type Event string

const (
	EventStageFailed    Event = "stage_failed"
	EventCycleCompleted Event = "cycle_completed"
	EventPublished      Event = "published"
	EventTest           Event = "test"
)

// Payload carries event details. Keys are event specific.
type Payload map[string]any

// Service delivers an event to one or more channels.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds the configured channels: ntfy when a topic is set and
// email when SMTP credentials are complete. With neither, a noop is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var services []Service
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		services = append(services, &ntfyService{
			endpoint: topic,
			client:   &http.Client{Timeout: timeout},
		})
	}
	if cfg.EmailConfigured() {
		services = append(services, NewEmailService(cfg.Notifications, nil))
	}

	switch len(services) {
	case 0:
		return noopService{}
	case 1:
		return services[0]
	default:
		return fanout(services)
	}
}

type fanout []Service

func (f fanout) Publish(ctx context.Context, event Event, payload Payload) error {
	var errs []error
	for _, svc := range f {
		if err := svc.Publish(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type ntfyMessage struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	data, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func (n *ntfyService) format(event Event, payload Payload) (ntfyMessage, bool) {
	switch event {
	case EventStageFailed:
		var builder strings.Builder
		builder.WriteString("❌ ")
		builder.WriteString(payloadString(payload, "stage", "unknown stage"))
		builder.WriteString(" failed")
		if id := payloadString(payload, "recordID", ""); id != "" {
			builder.WriteString(" for ")
			builder.WriteString(id)
		}
		builder.WriteString(": ")
		builder.WriteString(payloadString(payload, "error", "unknown"))
		return ntfyMessage{
			title:    "Shorts Factory - Error",
			message:  builder.String(),
			tags:     []string{"shorts", "error", "alert"},
			priority: "high",
		}, true
	case EventCycleCompleted:
		failed := payloadInt(payload, "failedJobs")
		if failed == 0 {
			// Clean cycles are not announced.
			return ntfyMessage{}, false
		}
		return ntfyMessage{
			title:   "Shorts Factory - Cycle Finished With Errors",
			message: fmt.Sprintf("Pipeline cycle finished: %d job(s) failed in %s", failed, payloadString(payload, "duration", "0s")),
			tags:    []string{"shorts", "cycle", "completed"},
		}, true
	case EventPublished:
		return ntfyMessage{
			title:   "Shorts Factory - Scheduled",
			message: fmt.Sprintf("📅 Scheduled %s for %s", payloadString(payload, "title", "video"), payloadString(payload, "publishAt", "later")),
			tags:    []string{"shorts", "publish", "scheduled"},
		}, true
	case EventTest:
		return ntfyMessage{
			title:    "Shorts Factory - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"shorts", "test"},
			priority: "low",
		}, true
	default:
		return ntfyMessage{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data ntfyMessage) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func payloadString(payload Payload, key, fallback string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return fallback
	}
	var text string
	switch v := value.(type) {
	case string:
		text = v
	case error:
		text = v.Error()
	case fmt.Stringer:
		text = v.String()
	default:
		text = fmt.Sprint(v)
	}
	if text = strings.TrimSpace(text); text == "" {
		return fallback
	}
	return text
}

func payloadInt(payload Payload, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
