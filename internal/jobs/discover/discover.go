// Package discover finds popular short videos on Reddit and drops them into
// the inbox for the collector.
package discover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"shortsfactory/internal/config"
	"shortsfactory/internal/fileutil"
	"shortsfactory/internal/jobs/collect"
	"shortsfactory/internal/logging"
	"shortsfactory/internal/media"
	"shortsfactory/internal/records"
	"shortsfactory/internal/services"
	"shortsfactory/internal/services/reddit"
	"shortsfactory/internal/services/ytdlp"
	"shortsfactory/internal/stage"
)

// IDPrefix marks ids that came from Reddit.
const IDPrefix = "rd_"

// Job downloads at most MaxDownloadsPerRun new videos per run.
type Job struct {
	cfg        *config.Config
	store      *records.Store
	reddit     *reddit.Client
	downloader *ytdlp.Client
	logger     *slog.Logger
	pick       func(n int) int
}

// Option customizes a Job.
type Option func(*Job)

// WithPicker replaces the random subreddit choice.
func WithPicker(pick func(n int) int) Option {
	return func(j *Job) {
		if pick != nil {
			j.pick = pick
		}
	}
}

// New builds the finder. run replaces yt-dlp when non-nil.
func New(cfg *config.Config, store *records.Store, run media.Runner, logger *slog.Logger, opts ...Option) *Job {
	j := &Job{
		cfg:        cfg,
		store:      store,
		reddit:     reddit.NewClient(cfg.Discover.BaseURL, cfg.Discover.UserAgent, 30*time.Second),
		downloader: ytdlp.New(cfg.Discover.YtDlpBinary, run),
		logger:     logging.NewComponentLogger(logger, config.JobViralFinder),
		pick:       rand.IntN,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *Job) Name() string { return config.JobViralFinder }

func (j *Job) Run(ctx context.Context) (stage.Summary, error) {
	var summary stage.Summary
	if !j.cfg.Discover.Enabled {
		summary.Detail = "discovery disabled"
		return summary, nil
	}
	subs := j.cfg.Discover.Subreddits
	if len(subs) == 0 {
		return summary, services.Wrap(services.ErrConfiguration, j.Name(), "prepare", "no subreddits configured", nil)
	}
	ctx = services.WithStage(ctx, j.Name())
	for _, dir := range []string{j.cfg.Paths.InboxDir(), j.cfg.Paths.TempDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return summary, services.Wrap(services.ErrConfiguration, j.Name(), "prepare", "create directory", err)
		}
	}

	subreddit := subs[j.pick(len(subs))]
	logger := j.logger.With(logging.String("subreddit", subreddit))
	posts, err := j.reddit.Hot(ctx, subreddit)
	if err != nil {
		return summary, services.Wrap(services.ErrExternalTool, j.Name(), "listing", "reddit listing failed", err)
	}
	candidates := reddit.Filter(posts, j.cfg.Discover.MinUpvotes, float64(j.cfg.Discover.MaxDurationSeconds))
	logger.Info("reddit candidates",
		logging.Int("listed", len(posts)),
		logging.Int("eligible", len(candidates)),
	)

	limit := j.cfg.Discover.MaxDownloadsPerRun
	if limit <= 0 {
		limit = 1
	}
	for _, post := range candidates {
		if summary.Succeeded >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		id := IDPrefix + post.ID
		known, err := j.known(ctx, id)
		if err != nil {
			return summary, err
		}
		if known {
			summary.Skipped++
			continue
		}
		summary.Claimed++
		postLogger := logger.With(logging.String(logging.FieldRecordID, id))
		if err := j.download(ctx, id, subreddit, post); err != nil {
			summary.Failed++
			logging.WarnWithContext(postLogger, "download failed", "discover_download_failed",
				logging.String("url", post.URL()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "next candidate is tried"),
			)
			continue
		}
		summary.Succeeded++
		postLogger.Info("video discovered",
			logging.String(logging.FieldEventType, "discover_downloaded"),
			logging.String("title", post.Title),
			logging.Int("ups", post.Ups),
		)
	}
	return summary, nil
}

// known reports whether id is already stored or waiting in the inbox.
func (j *Job) known(ctx context.Context, id string) (bool, error) {
	exists, err := j.store.Exists(ctx, id)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}
	_, err = os.Stat(filepath.Join(j.cfg.Paths.InboxDir(), id+".mp4"))
	return err == nil, nil
}

// download fetches into temp/, checks the size, writes the sidecar, and only
// then moves the video into the inbox so the collector never sees a partial file.
func (j *Job) download(ctx context.Context, id, subreddit string, post reddit.Post) error {
	timeout := time.Duration(j.cfg.Discover.DownloadTimeoutSeconds) * time.Second
	dlCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	staged := filepath.Join(j.cfg.Paths.TempDir(), id+".mp4")
	if err := j.downloader.Download(dlCtx, post.URL(), staged); err != nil {
		_ = os.Remove(staged)
		return services.Classify(j.Name(), "download", err)
	}
	info, err := os.Stat(staged)
	if err != nil {
		return fmt.Errorf("downloaded file missing: %w", err)
	}
	if info.Size() < j.cfg.Discover.MinFileBytes {
		_ = os.Remove(staged)
		return services.Wrap(services.ErrValidation, j.Name(), "download",
			fmt.Sprintf("file too small (%d bytes)", info.Size()), nil)
	}

	inbox := j.cfg.Paths.InboxDir()
	meta := collect.Sidecar{
		Title:     post.Title,
		Platform:  "reddit",
		Views:     post.Ups,
		URL:       post.URL(),
		Subreddit: subreddit,
	}
	if err := collect.WriteSidecar(inbox, id, meta); err != nil {
		_ = os.Remove(staged)
		return err
	}
	if err := fileutil.MoveFile(staged, filepath.Join(inbox, id+".mp4")); err != nil {
		_ = os.Remove(staged)
		if rmErr := os.Remove(collect.SidecarPath(inbox, id)); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return errors.Join(err, rmErr)
		}
		return err
	}
	return nil
}
