// Package collect ingests videos dropped into the inbox as collected records.
package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"shortsfactory/internal/config"
	"shortsfactory/internal/fileutil"
	"shortsfactory/internal/logging"
	"shortsfactory/internal/records"
	"shortsfactory/internal/services"
	"shortsfactory/internal/stage"
)

// Job moves inbox/*.mp4 into the work directory and inserts a record per id.
// Running it twice over the same inbox creates nothing new.
type Job struct {
	cfg    *config.Config
	store  *records.Store
	logger *slog.Logger
}

func New(cfg *config.Config, store *records.Store, logger *slog.Logger) *Job {
	return &Job{cfg: cfg, store: store, logger: logging.NewComponentLogger(logger, config.JobCollector)}
}

func (j *Job) Name() string { return config.JobCollector }

func (j *Job) Run(ctx context.Context) (stage.Summary, error) {
	var summary stage.Summary
	ctx = services.WithStage(ctx, j.Name())
	inbox := j.cfg.Paths.InboxDir()
	if err := os.MkdirAll(j.cfg.Paths.WorkDir(), 0o755); err != nil {
		return summary, services.Wrap(services.ErrConfiguration, j.Name(), "prepare", "create work directory", err)
	}
	files, err := filepath.Glob(filepath.Join(inbox, "*.mp4"))
	if err != nil {
		return summary, fmt.Errorf("%s: list inbox: %w", j.Name(), err)
	}
	sort.Strings(files)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		id := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		logger := logging.WithContext(services.WithRecordID(ctx, id), j.logger)

		inserted, err := j.collect(ctx, logger, inbox, id, file)
		if err != nil {
			summary.Failed++
			logging.WarnWithContext(logger, "inbox file not collected", "collect_failed",
				logging.String("path", file),
				logging.Error(err),
				logging.String(logging.FieldImpact, "file stays in the inbox for the next run"),
			)
			continue
		}
		if inserted {
			summary.Succeeded++
		} else {
			summary.Skipped++
		}
	}
	if summary.Succeeded > 0 {
		j.logger.Info("inbox collected",
			logging.String(logging.FieldEventType, "collect_complete"),
			logging.Int("collected", summary.Succeeded),
			logging.Int("skipped", summary.Skipped),
		)
	}
	return summary, nil
}

func (j *Job) collect(ctx context.Context, logger *slog.Logger, inbox, id, file string) (bool, error) {
	exists, err := j.store.Exists(ctx, id)
	if err != nil {
		return false, err
	}
	if exists {
		logger.Info("duplicate inbox file discarded", logging.String("path", file))
		removeQuiet(logger, file)
		removeQuiet(logger, SidecarPath(inbox, id))
		return false, nil
	}

	title := id
	meta, ok, err := ReadSidecar(inbox, id)
	switch {
	case err != nil:
		logging.WarnWithContext(logger, "sidecar unreadable; using id as title", "collect_sidecar_invalid",
			logging.Error(err),
			logging.String(logging.FieldImpact, "record title falls back to its id"),
		)
	case ok && meta.Title != "":
		title = meta.Title
	}

	dest := filepath.Join(j.cfg.Paths.WorkDir(), id+".mp4")
	if err := fileutil.MoveFile(file, dest); err != nil {
		return false, err
	}
	inserted, err := j.store.InsertIfAbsent(ctx, id, dest, title)
	if err != nil {
		return false, err
	}
	removeQuiet(logger, SidecarPath(inbox, id))
	if inserted {
		logger.Info("video collected",
			logging.String(logging.FieldEventType, "collect_record"),
			logging.String("title", title),
		)
	}
	return inserted, nil
}

func removeQuiet(logger *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("inbox cleanup failed", logging.String("path", path), logging.Error(err))
	}
}
