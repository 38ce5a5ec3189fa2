package stage

import (
	"context"
	"log/slog"

	"shortsfactory/internal/logging"
)

type (
	positionKey struct{}
	loggerKey   struct{}
)

// WithPosition records how many records the current run has already
// completed successfully.
func WithPosition(ctx context.Context, completed int) context.Context {
	return context.WithValue(ctx, positionKey{}, completed)
}

// PositionFromContext returns the count set by WithPosition, or zero.
func PositionFromContext(ctx context.Context) int {
	if v, ok := ctx.Value(positionKey{}).(int); ok {
		return v
	}
	return 0
}

// WithLogger carries the run- and record-scoped logger to handler code.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the logger set by WithLogger, or a no-op logger.
func Logger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return logging.NewNop()
}
