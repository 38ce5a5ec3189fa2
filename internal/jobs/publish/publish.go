// Package publish schedules captioned videos on the social networks and
// retires them into the published directory.
package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"shortsfactory/internal/config"
	"shortsfactory/internal/fileutil"
	"shortsfactory/internal/logging"
	"shortsfactory/internal/notifications"
	"shortsfactory/internal/records"
	"shortsfactory/internal/services"
	"shortsfactory/internal/services/metricool"
	"shortsfactory/internal/services/tmpfiles"
	"shortsfactory/internal/stage"
)

// Handler moves records from captioned to published. Every claim reserves a
// slot of the day's quota, so overlapping runs never post more than
// max_daily videos between them.
type Handler struct {
	cfg       *config.Config
	store     *records.Store
	now       func() time.Time
	reporter  *notifications.Reporter
	connected func() (networks, error)
}

// networks are the clients a publish needs, built once from the config.
type networks struct {
	scheduler *metricool.Client
	uploader  *tmpfiles.Client
}

// Option customizes a Handler.
type Option func(*Handler)

// WithClock replaces time.Now for schedule and quota computations.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithReporter announces every committed publication.
func WithReporter(reporter *notifications.Reporter) Option {
	return func(h *Handler) {
		h.reporter = reporter
	}
}

// New builds the publisher. Clients are created on first use so missing
// credentials surface from Prepare as a setup failure.
func New(cfg *config.Config, store *records.Store, opts ...Option) *Handler {
	h := &Handler{
		cfg:   cfg,
		store: store,
		now:   time.Now,
	}
	h.connected = sync.OnceValues(h.connect)
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Name() string { return config.JobPublisher }

func (h *Handler) From() records.Status { return records.StatusCaptioned }

func (h *Handler) Prepare(context.Context) error {
	if _, err := h.connected(); err != nil {
		return err
	}
	if err := os.MkdirAll(h.cfg.Paths.PublishedDir(), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, h.Name(), "prepare", "create published directory", err)
	}
	return nil
}

func (h *Handler) connect() (networks, error) {
	if !h.cfg.PublishConfigured() {
		return networks{}, services.Wrap(services.ErrConfiguration, h.Name(), "prepare",
			"Metricool credentials are not configured", nil)
	}
	timeout := time.Duration(h.cfg.Publish.RequestTimeoutSeconds) * time.Second
	client, err := metricool.NewClient(metricool.Config{
		BaseURL:   h.cfg.Publish.MetricoolBaseURL,
		Token:     h.cfg.Publish.MetricoolToken,
		UserID:    h.cfg.Publish.MetricoolUserID,
		BlogID:    h.cfg.Publish.MetricoolBlogID,
		Timezone:  h.cfg.Publish.MetricoolTimezone,
		Platforms: h.cfg.Publish.Platforms,
		Timeout:   timeout,
	})
	if err != nil {
		return networks{}, services.Wrap(services.ErrConfiguration, h.Name(), "prepare", "invalid Metricool settings", err)
	}
	return networks{
		scheduler: client,
		uploader:  tmpfiles.NewClient(h.cfg.Publish.UploadURL, timeout),
	}, nil
}

// Limit returns what is left of today's publish allowance.
func (h *Handler) Limit(ctx context.Context) (int, error) {
	remaining, err := h.store.RemainingQuota(ctx, h.now(), h.cfg.Publish.MaxDaily)
	if err != nil {
		return 0, err
	}
	stage.Logger(ctx).Info("publish quota",
		logging.Int("remaining", remaining),
		logging.Int("max_daily", h.cfg.Publish.MaxDaily),
	)
	return remaining, nil
}

// QuotaCharge names today's allowance; stageexec reserves one slot of it
// with every claim.
func (h *Handler) QuotaCharge(context.Context) records.QuotaCharge {
	return records.QuotaCharge{Date: h.store.Today(h.now()), Max: h.cfg.Publish.MaxDaily}
}

// Transform places the video under published/, uploads it, and schedules it
// at now + base offset + n * spacing, where n counts the posts this run has
// already scheduled. The quota slot was reserved with the claim.
func (h *Handler) Transform(ctx context.Context, video *records.Video) (stage.Result, error) {
	nets, err := h.connected()
	if err != nil {
		return stage.Result{}, err
	}
	output := OutputPath(h.cfg, video.ID)
	// A crash between placing the file and committing can leave a stale copy.
	if err := os.Remove(output); err != nil && !os.IsNotExist(err) {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, h.Name(), "stage", "remove stale published file", err)
	}
	if err := fileutil.LinkOrCopy(video.SourcePath, output); err != nil {
		return stage.Result{}, services.Wrap(services.ErrExternalTool, h.Name(), "stage", "place published file", err)
	}

	mediaURL, err := nets.uploader.Upload(ctx, output)
	if err != nil {
		return stage.Result{Artifact: output}, services.Wrap(services.ErrExternalTool, h.Name(), "upload", "upload failed", err)
	}

	now := h.now()
	at := ScheduleAt(now, stage.PositionFromContext(ctx), h.cfg.Publish)
	text := CaptionFor(video, h.cfg.Publish.DefaultCaption)
	postID, err := nets.scheduler.Schedule(ctx, metricool.Post{
		MediaURL: mediaURL,
		Text:     text,
		Title:    video.DisplayTitle(),
		At:       at,
	})
	if err != nil {
		return stage.Result{Artifact: output}, services.Wrap(services.ErrExternalTool, h.Name(), "schedule", "Metricool rejected the post", err)
	}
	return stage.Result{
		Artifact:    output,
		PublishedAt: &now,
		PostAt:      &at,
		Note:        fmt.Sprintf("scheduled %s for %s", postID, at.Format(time.RFC3339)),
	}, nil
}

// AfterCommit announces the scheduled post.
func (h *Handler) AfterCommit(_ context.Context, video *records.Video, result stage.Result) {
	if result.PostAt == nil {
		return
	}
	h.reporter.Publish(notifications.EventPublished, notifications.Payload{
		"recordID":  video.ID,
		"title":     video.DisplayTitle(),
		"publishAt": result.PostAt.In(h.cfg.Location()).Format("2006-01-02 15:04 MST"),
	})
}

func (h *Handler) HealthCheck(context.Context) stage.Health {
	if !h.cfg.PublishConfigured() {
		return stage.Unhealthy(h.Name(), "Metricool credentials missing")
	}
	return stage.Healthy(h.Name())
}

// OutputPath is the published location for id.
func OutputPath(cfg *config.Config, id string) string {
	return filepath.Join(cfg.Paths.PublishedDir(), id+".mp4")
}

// ScheduleAt spaces the posts of one run apart; scheduled is how many the
// run has already placed.
func ScheduleAt(now time.Time, scheduled int, p config.Publish) time.Time {
	offset := time.Duration(p.BaseOffsetMinutes)*time.Minute +
		time.Duration(scheduled)*time.Duration(p.SpacingMinutes)*time.Minute
	return now.Add(offset)
}

// CaptionFor picks the post text: the generated description, else the
// title, else fallback.
func CaptionFor(video *records.Video, fallback string) string {
	if d := strings.TrimSpace(video.Description); d != "" {
		return d
	}
	if t := strings.TrimSpace(video.Title); t != "" {
		return t
	}
	return fallback
}
