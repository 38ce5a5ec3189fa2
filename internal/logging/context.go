package logging

import (
	"context"
	"log/slog"

	"shortsfactory/internal/services"
)

// WithContext enriches the logger with identifiers stored on the context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	attrs := make([]any, 0, 4)
	if id, ok := services.RecordIDFromContext(ctx); ok {
		attrs = append(attrs, String(FieldRecordID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		attrs = append(attrs, String(FieldStage, stage))
	}
	if token, ok := services.RunTokenFromContext(ctx); ok {
		attrs = append(attrs, String(FieldRunToken, token))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		attrs = append(attrs, String(FieldCorrelationID, rid))
	}
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(attrs...)
}
