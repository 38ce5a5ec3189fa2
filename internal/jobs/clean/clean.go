// Package clean retires published records and sweeps stale files out of the
// pipeline directories.
package clean

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shortsfactory/internal/config"
	"shortsfactory/internal/logging"
	"shortsfactory/internal/notifications"
	"shortsfactory/internal/records"
	"shortsfactory/internal/services"
	"shortsfactory/internal/stage"
)

// quotaHistoryDays is how long daily counters are kept for inspection.
const quotaHistoryDays = 30

var orphanExtensions = map[string]struct{}{".json": {}, ".ass": {}}

// Job is the retention sweeper.
type Job struct {
	cfg      *config.Config
	store    *records.Store
	reporter *notifications.Reporter
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes a Job.
type Option func(*Job)

// WithClock replaces time.Now for age computations.
func WithClock(now func() time.Time) Option {
	return func(j *Job) {
		if now != nil {
			j.now = now
		}
	}
}

func New(cfg *config.Config, store *records.Store, reporter *notifications.Reporter, logger *slog.Logger, opts ...Option) *Job {
	j := &Job{
		cfg:      cfg,
		store:    store,
		reporter: reporter,
		logger:   logging.NewComponentLogger(logger, config.JobCleaner),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *Job) Name() string { return config.JobCleaner }

// Run retires published records, then sweeps aged files that no record
// references, then drops old quota counters. Individual removal failures are
// reported and skipped.
func (j *Job) Run(ctx context.Context) (stage.Summary, error) {
	var summary stage.Summary
	ctx = services.WithStage(ctx, j.Name())
	now := j.now()

	retired, failed, err := j.retirePublished(ctx, now)
	summary.Succeeded += retired
	summary.Failed += failed
	if err != nil {
		return summary, err
	}

	live, err := j.store.LiveSourcePaths(ctx)
	if err != nil {
		return summary, fmt.Errorf("%s: %w", j.Name(), err)
	}
	ids, err := j.store.IDs(ctx)
	if err != nil {
		return summary, fmt.Errorf("%s: %w", j.Name(), err)
	}

	var swept int
	for _, sweep := range []struct {
		dir    string
		maxAge time.Duration
	}{
		{j.cfg.Paths.OutDir(), hours(j.cfg.Retention.OutMaxAgeHours)},
		{j.cfg.Paths.TempDir(), hours(j.cfg.Retention.TempMaxAgeHours)},
		{j.cfg.Paths.PublishedDir(), hours(j.cfg.Retention.OutMaxAgeHours)},
	} {
		n, f := j.sweepAged(ctx, sweep.dir, sweep.maxAge, now, live)
		swept += n
		summary.Failed += f
	}
	orphanAge := time.Duration(j.cfg.Retention.OrphanMaxAgeMinutes) * time.Minute
	for _, dir := range []string{j.cfg.Paths.InboxDir(), j.cfg.Paths.TempDir(), j.cfg.Paths.OutDir()} {
		n, f := j.sweepOrphans(ctx, dir, orphanAge, now, ids)
		swept += n
		summary.Failed += f
	}
	summary.Succeeded += swept

	pruned, err := j.store.PruneQuota(ctx, records.DateKey(now.AddDate(0, 0, -quotaHistoryDays), j.cfg.Location()))
	if err != nil {
		return summary, fmt.Errorf("%s: %w", j.Name(), err)
	}

	summary.Detail = fmt.Sprintf("retired %d records, removed %d files", retired, swept)
	if retired > 0 || swept > 0 || pruned > 0 {
		j.logger.Info("retention sweep finished",
			logging.String(logging.FieldEventType, "clean_complete"),
			logging.Int("records_retired", retired),
			logging.Int("files_removed", swept),
			logging.Int64("quota_days_pruned", pruned),
		)
	}
	return summary, nil
}

// retirePublished deletes published records past the grace window together
// with their asset.
func (j *Job) retirePublished(ctx context.Context, now time.Time) (int, int, error) {
	cutoff := now.Add(-hours(j.cfg.Retention.PublishedGraceHours))
	videos, err := j.store.PublishedBefore(ctx, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", j.Name(), err)
	}
	var retired, failed int
	for _, video := range videos {
		if err := ctx.Err(); err != nil {
			return retired, failed, err
		}
		deleted, err := j.store.DeletePublished(ctx, video.ID, removeIfPresent)
		if err != nil {
			failed++
			if !deleted {
				j.report(services.WithRecordID(ctx, video.ID), "published record not retired", err, video.SourcePath)
				continue
			}
			j.report(services.WithRecordID(ctx, video.ID), "published file left behind", err, video.SourcePath)
		}
		if deleted {
			retired++
			logging.WithContext(services.WithRecordID(ctx, video.ID), j.logger).Info("published record retired",
				logging.String(logging.FieldEventType, "clean_record_deleted"),
				logging.String("path", video.SourcePath),
			)
		}
	}
	return retired, failed, nil
}

// sweepAged removes regular files in dir older than maxAge unless a record
// still points at them.
func (j *Job) sweepAged(ctx context.Context, dir string, maxAge time.Duration, now time.Time, live map[string]struct{}) (int, int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			j.report(ctx, "directory not swept", err, dir)
			return 0, 1
		}
		return 0, 0
	}
	var removed, failed int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, ok := live[path]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil || now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		if err := removeIfPresent(path); err != nil {
			failed++
			j.report(ctx, "stale file not removed", err, path)
			continue
		}
		removed++
		j.logger.Debug("stale file removed",
			logging.String("path", path),
			logging.Duration("age", now.Sub(info.ModTime()).Round(time.Minute)),
		)
	}
	return removed, failed
}

// sweepOrphans removes sidecar and subtitle files whose id has no record and
// no video waiting beside them.
func (j *Job) sweepOrphans(ctx context.Context, dir string, maxAge time.Duration, now time.Time, ids map[string]struct{}) (int, int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0
	}
	var removed, failed int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if _, ok := orphanExtensions[ext]; !ok {
			continue
		}
		id := strings.TrimSuffix(name, ext)
		if _, ok := ids[id]; ok {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, id+".mp4")); err == nil {
			continue
		}
		info, err := entry.Info()
		if err != nil || now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		path := filepath.Join(dir, name)
		if err := removeIfPresent(path); err != nil {
			failed++
			j.report(ctx, "orphan not removed", err, path)
			continue
		}
		removed++
		j.logger.Debug("orphan removed", logging.String("path", path))
	}
	return removed, failed
}

func (j *Job) report(ctx context.Context, msg string, err error, path string) {
	logging.WarnWithContext(logging.WithContext(ctx, j.logger), msg, "clean_failed",
		logging.String("path", path),
		logging.Error(err),
		logging.String(logging.FieldImpact, "retried on the next sweep"),
	)
	j.reporter.Report(ctx, j.Name(), err, map[string]string{"file": path})
}

func removeIfPresent(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
