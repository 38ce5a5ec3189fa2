package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// InsertIfAbsent creates a collected record. It reports false without error
// when a record with the same id already exists.
func (s *Store) InsertIfAbsent(ctx context.Context, id, sourcePath, title string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, errors.New("insert video: id is required")
	}
	if strings.TrimSpace(sourcePath) == "" {
		return false, errors.New("insert video: source path is required")
	}
	now := formatTime(time.Now())
	res, err := s.execWithRetry(ctx,
		`INSERT INTO videos (id, source_path, status, title, created_at, updated_at, attempts)
         VALUES (?, ?, ?, ?, ?, ?, 0)
         ON CONFLICT(id) DO NOTHING`,
		id, sourcePath, StatusCollected, nullableString(strings.TrimSpace(title)), now, now,
	)
	if err != nil {
		return false, fmt.Errorf("insert video: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert video rows affected: %w", err)
	}
	return affected == 1, nil
}

// GetByID fetches a record. It returns nil without error when the id is unknown.
func (s *Store) GetByID(ctx context.Context, id string) (*Video, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// Exists reports whether a record with id is present in any status.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM videos WHERE id = ?`, id).Scan(&count); err != nil {
		return false, fmt.Errorf("check video: %w", err)
	}
	return count > 0, nil
}

// List returns records in creation order, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at, rowid`
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	videos, err := scanVideos(rows)
	if err != nil {
		return nil, fmt.Errorf("scan videos: %w", err)
	}
	return videos, nil
}

// ListByStatus returns up to limit records in status, oldest first. A
// non-positive limit returns every match.
func (s *Store) ListByStatus(ctx context.Context, status Status, limit int) ([]*Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE status = ? ORDER BY created_at, rowid`
	args := []any{status}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list videos by status: %w", err)
	}
	videos, err := scanVideos(rows)
	if err != nil {
		return nil, fmt.Errorf("scan videos: %w", err)
	}
	return videos, nil
}

// ListNeedingDescription returns transcribed records that have no description yet.
func (s *Store) ListNeedingDescription(ctx context.Context, limit int) ([]*Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos
        WHERE status = ? AND (description IS NULL OR description = '')
        ORDER BY created_at, rowid`
	args := []any{StatusTranscribed}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list videos needing description: %w", err)
	}
	videos, err := scanVideos(rows)
	if err != nil {
		return nil, fmt.Errorf("scan videos: %w", err)
	}
	return videos, nil
}

// SetDescription stores a generated description without touching status. It
// reports false when the record vanished or already carries a description.
func (s *Store) SetDescription(ctx context.Context, id, description string) (bool, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return false, errors.New("set description: empty description")
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE videos SET description = ?, updated_at = ?
         WHERE id = ? AND (description IS NULL OR description = '')`,
		description, formatTime(time.Now()), id,
	)
	if err != nil {
		return false, fmt.Errorf("set description: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set description rows affected: %w", err)
	}
	return affected == 1, nil
}

// Counts returns the number of records per stored status.
func (s *Store) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM videos GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count videos: %w", err)
	}
	defer rows.Close()
	counts := make(map[Status]int, len(allStatuses))
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}

// RetryFailed moves a failed record back to the stable status its last
// attempt was claimed from and clears the attempt counter.
func (s *Store) RetryFailed(ctx context.Context, id string) (Status, error) {
	video, err := s.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if video == nil {
		return "", fmt.Errorf("%w: retry video %s", ErrNotFound, id)
	}
	if video.Status != StatusFailed {
		return "", fmt.Errorf("%w: %s is %s, not failed", ErrInvalidTransition, id, video.Status)
	}
	to := video.FailedFrom
	if _, ok := ProcessingFor(to); !ok {
		return "", fmt.Errorf("%w: unknown resume status %q for %s", ErrInvalidTransition, to, id)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE videos SET status = ?, attempts = 0, last_error = NULL, failed_from = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		to, formatTime(time.Now()), id, StatusFailed,
	)
	if err != nil {
		return "", fmt.Errorf("retry failed video: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("retry rows affected: %w", err)
	}
	if affected == 0 {
		return "", fmt.Errorf("%w: %s changed while retrying", ErrClaimLost, id)
	}
	return to, nil
}
