package llm

import (
	"context"
	"errors"
	"net"
	"time"
)

// backoff retries transient failures: 5xx, 408, 429, timeouts, and replies
// without content. Delays double from base and stop growing at limit.
type backoff struct {
	attempts int
	base     time.Duration
	limit    time.Duration
	sleep    func(time.Duration)
}

// delay returns how long to wait before attempt+1, or false when err is final.
func (b backoff) delay(attempt int, err error) (time.Duration, bool) {
	if attempt >= max(b.attempts, 1) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var statusErr *httpStatusError
	var emptyErr *emptyContentError
	var netErr net.Error
	switch {
	case errors.As(err, &statusErr):
		if statusErr.Permanent() {
			return 0, false
		}
		if statusErr.RetryAfter > 0 {
			return b.cap(statusErr.RetryAfter), true
		}
	case errors.As(err, &emptyErr):
	case errors.As(err, &netErr) && netErr.Timeout():
	default:
		return 0, false
	}
	return b.step(attempt), true
}

func (b backoff) step(attempt int) time.Duration {
	if b.base <= 0 {
		return 0
	}
	d := b.base
	for i := 1; i < attempt; i++ {
		if b.limit > 0 && d >= b.limit {
			break
		}
		d *= 2
	}
	return b.cap(d)
}

func (b backoff) cap(d time.Duration) time.Duration {
	if b.limit > 0 && d > b.limit {
		return b.limit
	}
	return d
}

func (b backoff) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 || ctx.Err() != nil {
		return ctx.Err()
	}
	if b.sleep != nil {
		b.sleep(d)
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
