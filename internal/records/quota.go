package records

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const dateKeyLayout = "2006-01-02"

// DateKey formats the calendar day of t in loc as YYYY-MM-DD.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dateKeyLayout)
}

// Today returns the quota key for now in the store's zone.
func (s *Store) Today(now time.Time) string {
	return DateKey(now, s.loc)
}

// QuotaCount returns how many videos were published on date.
func (s *Store) QuotaCount(ctx context.Context, date string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT count FROM daily_quota WHERE date = ?`, date).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read quota: %w", err)
	}
	return count, nil
}

// RemainingQuota returns max minus today's publish count, never negative.
func (s *Store) RemainingQuota(ctx context.Context, now time.Time, max int) (int, error) {
	used, err := s.QuotaCount(ctx, s.Today(now))
	if err != nil {
		return 0, err
	}
	if remaining := max - used; remaining > 0 {
		return remaining, nil
	}
	return 0, nil
}

// chargeQuota increments the day's counter unless it already reached the cap.
func chargeQuota(ctx context.Context, tx *sql.Tx, charge QuotaCharge) error {
	if charge.Max <= 0 {
		return fmt.Errorf("%w: cap is %d", ErrQuotaExhausted, charge.Max)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO daily_quota (date, count) VALUES (?, 1)
         ON CONFLICT(date) DO UPDATE SET count = count + 1 WHERE daily_quota.count < ?`,
		charge.Date, charge.Max,
	)
	if err != nil {
		return fmt.Errorf("charge quota: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("charge quota rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s reached %d", ErrQuotaExhausted, charge.Date, charge.Max)
	}
	return nil
}

// refundQuota returns one slot of date's allowance.
func refundQuota(ctx context.Context, tx *sql.Tx, date string) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE daily_quota SET count = count - 1 WHERE date = ? AND count > 0`, date,
	); err != nil {
		return fmt.Errorf("refund quota: %w", err)
	}
	return nil
}
