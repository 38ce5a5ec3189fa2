package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"shortsfactory/internal/logging"
)

const reportTimeout = 30 * time.Second

// Reporter records job failures: always in the local log, then best effort
// through the notification service in the background. Delivery problems are
// logged and never returned.
type Reporter struct {
	service Service
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewReporter wraps service. A nil service only logs.
func NewReporter(service Service, logger *slog.Logger) *Reporter {
	if service == nil {
		service = noopService{}
	}
	return &Reporter{service: service, logger: logging.NewComponentLogger(logger, "reporter")}
}

// Report logs the failure of stage and delivers it asynchronously.
func (r *Reporter) Report(ctx context.Context, stage string, err error, details map[string]string) {
	if r == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldJob, stage),
		logging.Error(err),
	}
	payload := Payload{"stage": stage, "error": err}
	for key, value := range details {
		attrs = append(attrs, logging.String(key, value))
		payload[key] = value
	}
	logging.ErrorWithContext(logging.WithContext(ctx, r.logger), "job failure reported", "job_failure", attrs...)
	r.Publish(EventStageFailed, payload)
}

// Publish delivers an event in the background.
func (r *Reporter) Publish(event Event, payload Payload) {
	if r == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		defer cancel()
		if err := r.service.Publish(ctx, event, payload); err != nil {
			r.logger.Warn("notification delivery failed",
				logging.String(logging.FieldEventType, "notification_failed"),
				logging.String("event", string(event)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "operators were not alerted out of band"),
			)
		}
	}()
}

// Wait blocks until in-flight deliveries finish.
func (r *Reporter) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}
