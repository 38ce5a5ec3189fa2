package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	claimCandidateBatch = 16
	claimMaxRounds      = 8
	maxErrorLength      = 1000
)

// Claim is a record held in a processing marker by one caller.
type Claim struct {
	Video  *Video
	Token  string
	Stable Status
	// Quota is the allowance slot reserved with the claim, if any.
	Quota *QuotaCharge
}

// Processing returns the marker the claimed record currently carries.
func (c *Claim) Processing() Status {
	marker, _ := ProcessingFor(c.Stable)
	return marker
}

// QuotaCharge is one slot of a day's publish allowance.
type QuotaCharge struct {
	Date string
	Max  int
}

// Transition describes the fields a successful stage writes together with
// the status change. Nil or empty fields are left untouched.
type Transition struct {
	Claim         *Claim
	To            Status
	SourcePath    string
	Transcription *string
	Description   *string
	PublishedAt   *time.Time
}

// errNotClaimed rolls back a reservation whose record was taken first.
var errNotClaimed = errors.New("record not claimable")

// ClaimNext atomically moves the oldest record in from into its processing
// marker. It returns nil without error when nothing is eligible.
func (s *Store) ClaimNext(ctx context.Context, from Status, token string) (*Claim, error) {
	return s.claimNext(ctx, from, token, nil)
}

// ClaimNextWithQuota is ClaimNext for metered stages: the claim and one slot
// of charge's allowance are taken in one transaction. It returns
// ErrQuotaExhausted, claiming nothing, once the day's cap is reached.
func (s *Store) ClaimNextWithQuota(ctx context.Context, from Status, token string, charge QuotaCharge) (*Claim, error) {
	return s.claimNext(ctx, from, token, &charge)
}

func (s *Store) claimNext(ctx context.Context, from Status, token string, charge *QuotaCharge) (*Claim, error) {
	if _, ok := ProcessingFor(from); !ok {
		return nil, fmt.Errorf("%w: %s has no processing marker", ErrInvalidTransition, from)
	}
	for round := 0; round < claimMaxRounds; round++ {
		ids, err := s.candidateIDs(ctx, from)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, nil
		}
		for _, id := range ids {
			claim, err := s.claimByID(ctx, id, from, token, charge)
			if err != nil {
				return nil, err
			}
			if claim != nil {
				return claim, nil
			}
		}
	}
	return nil, nil
}

func (s *Store) candidateIDs(ctx context.Context, from Status) ([]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id FROM videos WHERE status = ? ORDER BY created_at, rowid LIMIT ?`,
		from, claimCandidateBatch)
	if err != nil {
		return nil, fmt.Errorf("select claim candidates: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan claim candidate: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClaimByID tries to claim one specific record. It returns nil without error
// when the record is no longer in from.
func (s *Store) ClaimByID(ctx context.Context, id string, from Status, token string) (*Claim, error) {
	return s.claimByID(ctx, id, from, token, nil)
}

// ClaimByIDWithQuota claims id and reserves one slot of charge's allowance.
func (s *Store) ClaimByIDWithQuota(ctx context.Context, id string, from Status, token string, charge QuotaCharge) (*Claim, error) {
	return s.claimByID(ctx, id, from, token, &charge)
}

func (s *Store) claimByID(ctx context.Context, id string, from Status, token string, charge *QuotaCharge) (*Claim, error) {
	marker, ok := ProcessingFor(from)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no processing marker", ErrInvalidTransition, from)
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("claim: token is required")
	}
	ctx = ensureContext(ctx)
	now := formatTime(time.Now())
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if charge != nil {
			if err := chargeQuota(ctx, tx, *charge); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE videos SET status = ?, claim_token = ?, claimed_at = ?, updated_at = ?
             WHERE id = ? AND status = ?`,
			marker, token, now, now, id, from,
		)
		if err != nil {
			return fmt.Errorf("claim video: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim rows affected: %w", err)
		}
		if affected != 1 {
			return errNotClaimed
		}
		return nil
	})
	if errors.Is(err, errNotClaimed) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	video, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if video == nil || video.ClaimToken != token {
		return nil, nil
	}
	return &Claim{Video: video, Token: token, Stable: from, Quota: charge}, nil
}

// Commit applies a successful stage result: status, payload fields and
// claim clearing succeed or fail together. Publishing requires a claim that
// reserved a quota slot; the slot is kept by the commit.
func (s *Store) Commit(ctx context.Context, tr Transition) error {
	if tr.Claim == nil || tr.Claim.Video == nil {
		return errors.New("commit: claim is required")
	}
	ctx = ensureContext(ctx)
	next, ok := AllowedNext(tr.Claim.Stable)
	if !ok || next != tr.To {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, tr.Claim.Stable, tr.To)
	}
	if tr.To == StatusPublished && tr.Claim.Quota == nil {
		return fmt.Errorf("%w: publishing requires a quota reservation", ErrInvalidTransition)
	}

	now := formatTime(time.Now())
	sets := []string{"status = ?", "claim_token = NULL", "claimed_at = NULL", "attempts = 0", "last_error = NULL", "updated_at = ?"}
	args := []any{tr.To, now}
	if tr.SourcePath != "" {
		sets = append(sets, "source_path = ?")
		args = append(args, tr.SourcePath)
	}
	if tr.Transcription != nil {
		sets = append(sets, "transcription = ?")
		args = append(args, *tr.Transcription)
	}
	if tr.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, nullableString(*tr.Description))
	}
	if tr.PublishedAt != nil {
		sets = append(sets, "published_at = ?")
		args = append(args, formatTime(*tr.PublishedAt))
	}
	args = append(args, tr.Claim.Video.ID, tr.Claim.Processing(), tr.Claim.Token)
	update := `UPDATE videos SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND status = ? AND claim_token = ?`

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, update, args...)
		if err != nil {
			return fmt.Errorf("commit video: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("commit rows affected: %w", err)
		}
		if affected != 1 {
			return fmt.Errorf("%w: %s", ErrClaimLost, tr.Claim.Video.ID)
		}
		return nil
	})
}

// Release returns a claimed record after a failed attempt. The record goes
// back to its stable status, or to failed once attempts are exhausted or the
// failure is permanent. A reserved quota slot is handed back. The resulting
// status is returned.
func (s *Store) Release(ctx context.Context, claim *Claim, cause error, permanent bool) (Status, error) {
	if claim == nil || claim.Video == nil {
		return "", errors.New("release: claim is required")
	}
	ctx = ensureContext(ctx)
	message := "unknown error"
	if cause != nil {
		message = truncate(cause.Error(), maxErrorLength)
	}
	var result Status
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE videos SET
                 attempts = attempts + 1,
                 last_error = ?,
                 status = CASE WHEN ? OR attempts + 1 >= ? THEN ? ELSE ? END,
                 failed_from = CASE WHEN ? OR attempts + 1 >= ? THEN ? ELSE NULL END,
                 claim_token = NULL, claimed_at = NULL, updated_at = ?
             WHERE id = ? AND status = ? AND claim_token = ?`,
			message,
			permanent, s.maxAttempts, StatusFailed, claim.Stable,
			permanent, s.maxAttempts, claim.Stable,
			formatTime(time.Now()),
			claim.Video.ID, claim.Processing(), claim.Token,
		)
		if err != nil {
			return fmt.Errorf("release video: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("release rows affected: %w", err)
		}
		if affected != 1 {
			return fmt.Errorf("%w: %s", ErrClaimLost, claim.Video.ID)
		}
		if claim.Quota != nil {
			if err := refundQuota(ctx, tx, claim.Quota.Date); err != nil {
				return err
			}
		}
		var status string
		if err := tx.QueryRowContext(ctx, `SELECT status FROM videos WHERE id = ?`, claim.Video.ID).Scan(&status); err != nil {
			return fmt.Errorf("read released status: %w", err)
		}
		result = Status(status)
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

// ReleaseStaleClaims returns records whose claim predates cutoff to the stable
// status they were claimed from. Used at startup to recover from a crash.
// Quota slots reserved by those claims stay spent: the crashed publisher may
// already have scheduled the post.
func (s *Store) ReleaseStaleClaims(ctx context.Context, cutoff time.Time) (int64, error) {
	cases := make([]string, 0, len(processingMarkers))
	args := make([]any, 0, len(processingMarkers)*3+4)
	markers := make([]any, 0, len(processingMarkers))
	for _, stable := range allStatuses {
		marker, ok := processingMarkers[stable]
		if !ok {
			continue
		}
		cases = append(cases, "WHEN ? THEN ?")
		args = append(args, marker, stable)
		markers = append(markers, marker)
	}
	args = append(args, formatTime(time.Now()))
	args = append(args, markers...)
	args = append(args, formatTime(cutoff))

	res, err := s.execWithRetry(ctx,
		`UPDATE videos
         SET status = CASE status `+strings.Join(cases, " ")+` ELSE status END,
             claim_token = NULL, claimed_at = NULL,
             last_error = 'claim expired before the stage finished', updated_at = ?
         WHERE status IN (`+makePlaceholders(len(markers))+`)
           AND (claimed_at IS NULL OR claimed_at < ?)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("release stale claims: %w", err)
	}
	return res.RowsAffected()
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return strings.ToValidUTF8(value[:limit], "")
}
