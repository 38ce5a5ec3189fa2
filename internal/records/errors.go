package records

import "errors"

var (
	// ErrClaimLost means the record no longer carries the caller's claim token.
	ErrClaimLost = errors.New("claim lost")
	// ErrQuotaExhausted aborts a publish commit once the daily cap is reached.
	ErrQuotaExhausted = errors.New("daily quota exhausted")
	// ErrInvalidTransition rejects a status change AllowedNext does not permit.
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("video not found")
)
