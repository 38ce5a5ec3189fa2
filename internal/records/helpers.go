package records

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

const videoColumns = "id, source_path, status, title, created_at, updated_at, transcription, description, published_at, attempts, last_error, failed_from, claim_token, claimed_at"

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*Video, error) {
	var (
		id            string
		sourcePath    string
		statusStr     string
		title         sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
		transcription sql.NullString
		description   sql.NullString
		publishedRaw  sql.NullString
		attempts      sql.NullInt64
		lastError     sql.NullString
		failedFrom    sql.NullString
		claimToken    sql.NullString
		claimedRaw    sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&sourcePath,
		&statusStr,
		&title,
		&createdRaw,
		&updatedRaw,
		&transcription,
		&description,
		&publishedRaw,
		&attempts,
		&lastError,
		&failedFrom,
		&claimToken,
		&claimedRaw,
	); err != nil {
		return nil, err
	}

	video := &Video{
		ID:            id,
		SourcePath:    sourcePath,
		Status:        Status(statusStr),
		Title:         title.String,
		Transcription: transcription.String,
		Description:   description.String,
		Attempts:      int(attempts.Int64),
		LastError:     lastError.String,
		FailedFrom:    Status(failedFrom.String),
		ClaimToken:    claimToken.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		video.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		video.UpdatedAt = updated
	}
	if publishedRaw.Valid {
		if published, err := parseTimeString(publishedRaw.String); err == nil {
			video.PublishedAt = &published
		}
	}
	if claimedRaw.Valid {
		if claimed, err := parseTimeString(claimedRaw.String); err == nil {
			video.ClaimedAt = &claimed
		}
	}
	return video, nil
}

func scanVideos(rows *sql.Rows) ([]*Video, error) {
	defer rows.Close()
	var out []*Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, video)
	}
	return out, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
