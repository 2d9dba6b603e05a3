package logging

import (
	"context"
	"log/slog"

	"tsundoku/internal/services"
)

// WithContext decorates the logger with identifiers carried by the context so
// every line inside a batch run can be correlated.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	if ctx == nil {
		return logger
	}
	if runID, ok := services.RunIDFromContext(ctx); ok {
		logger = logger.With(String(FieldRunID, runID))
	}
	if entryID, ok := services.EntryIDFromContext(ctx); ok {
		logger = logger.With(Int64("entry_id", entryID))
	}
	return logger
}
