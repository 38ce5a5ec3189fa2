package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// kindError is a sentinel that names the failure category it stands for.
type kindError struct {
	kind string
	msg  string
}

func (e *kindError) Error() string { return e.msg }

// Failure categories. Every job error is wrapped with one of these so the
// executor can decide between retrying, failing the record, and aborting the run.
var (
	ErrExternalTool  error = &kindError{"external_tool", "external tool error"}
	ErrValidation    error = &kindError{"validation", "validation error"}
	ErrConfiguration error = &kindError{"configuration", "configuration error"}
	ErrNotFound      error = &kindError{"not_found", "not found"}
	ErrTimeout       error = &kindError{"timeout", "timeout"}
	ErrTransient     error = &kindError{"transient", "transient failure"}
)

// Wrap tags err with marker and prefixes it with "stage: operation: message",
// skipping blank parts. A nil marker means ErrTransient.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	var parts []string
	for _, part := range []string{stage, operation, message} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	detail := strings.Join(parts, ": ")
	if detail == "" {
		detail = "service failure"
	}
	if err == nil {
		return fmt.Errorf("%w: %s", marker, detail)
	}
	return fmt.Errorf("%w: %s: %w", marker, detail, err)
}

// Classify turns an expired deadline into ErrTimeout. Anything else is
// returned unchanged.
func Classify(stage, operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return Wrap(ErrTimeout, stage, operation, "deadline exceeded", err)
	}
	return err
}

// IsSetupFailure reports a job-wide problem such as missing credentials or a
// missing shared asset.
func IsSetupFailure(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsPermanent reports a record that can never succeed on retry.
func IsPermanent(err error) bool { return errors.Is(err, ErrValidation) }

// Kind labels err for logs and metrics. Untagged errors are "transient".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var tagged *kindError
	if errors.As(err, &tagged) {
		return tagged.kind
	}
	return "transient"
}
