package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"
)

// LiveSourcePaths returns the source path of every stored record. Files in
// this set must never be swept.
func (s *Store) LiveSourcePaths(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT source_path FROM videos`)
	if err != nil {
		return nil, fmt.Errorf("list source paths: %w", err)
	}
	defer rows.Close()
	paths := make(map[string]struct{})
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan source path: %w", err)
		}
		paths[path] = struct{}{}
	}
	return paths, rows.Err()
}

// IDs returns the id of every stored record.
func (s *Store) IDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT id FROM videos`)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()
	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// PublishedBefore lists published records whose publish time is older than cutoff.
func (s *Store) PublishedBefore(ctx context.Context, cutoff time.Time) ([]*Video, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+videoColumns+` FROM videos
         WHERE status = ? AND (published_at IS NULL OR published_at <= ?)
         ORDER BY created_at, rowid`,
		StatusPublished, formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("list published videos: %w", err)
	}
	videos, err := scanVideos(rows)
	if err != nil {
		return nil, fmt.Errorf("scan videos: %w", err)
	}
	return videos, nil
}

// deletingSuffix marks a published file whose record delete is in flight.
const deletingSuffix = ".deleting"

// DeletePublished retires a published record. The file is renamed aside
// before the row delete commits, put back if the commit fails, and handed to
// removeAsset only once the delete is durable. A file that is already gone
// does not block the delete. It reports false when the record is no longer
// published; an error with true means the row is gone but the set-aside file
// was left behind.
func (s *Store) DeletePublished(ctx context.Context, id string, removeAsset func(path string) error) (bool, error) {
	if next, _ := AllowedNext(StatusPublished); next != StatusDeleted {
		return false, fmt.Errorf("%w: published -> deleted", ErrInvalidTransition)
	}
	ctx = ensureContext(ctx)
	var tx *sql.Tx
	if err := retryOnBusy(ctx, func() error {
		var beginErr error
		tx, beginErr = s.db.BeginTx(ctx, nil)
		return beginErr
	}); err != nil {
		return false, fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var path string
	err := tx.QueryRowContext(ctx,
		`SELECT source_path FROM videos WHERE id = ? AND status = ?`, id, StatusPublished).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read published video: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM videos WHERE id = ? AND status = ?`, id, StatusPublished); err != nil {
		return false, fmt.Errorf("delete video: %w", err)
	}

	aside := path + deletingSuffix
	moved := true
	if err := os.Rename(path, aside); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("set aside %s: %w", path, err)
		}
		moved = false
	}
	if err := tx.Commit(); err != nil {
		if moved {
			if restoreErr := os.Rename(aside, path); restoreErr != nil {
				err = errors.Join(err, fmt.Errorf("restore %s: %w", path, restoreErr))
			}
		}
		return false, fmt.Errorf("commit delete: %w", err)
	}
	if moved && removeAsset != nil {
		if err := removeAsset(aside); err != nil {
			return true, fmt.Errorf("remove asset %s: %w", aside, err)
		}
	}
	return true, nil
}

// PruneQuota drops daily counters older than the given date key.
func (s *Store) PruneQuota(ctx context.Context, before string) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM daily_quota WHERE date < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("prune quota: %w", err)
	}
	return res.RowsAffected()
}
