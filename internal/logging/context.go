package logging

import (
	"context"
	"log/slog"
)

// ContextKey is the type used for context values carried into log records.
type ContextKey string

const (
	// RunIDKey carries the pipeline run id through a run's call tree.
	RunIDKey ContextKey = "log_run_id"

	// SourceKey carries the connector source name during per-source work.
	SourceKey ContextKey = "log_source"
)

// WithRunID returns a context carrying the given pipeline run id.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID returns the run id from the context, or "" if absent.
func GetRunID(ctx context.Context) string {
	if v, ok := ctx.Value(RunIDKey).(string); ok {
		return v
	}
	return ""
}

// WithSource returns a context carrying the given connector source name.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, SourceKey, source)
}

// GetSource returns the source name from the context, or "" if absent.
func GetSource(ctx context.Context) string {
	if v, ok := ctx.Value(SourceKey).(string); ok {
		return v
	}
	return ""
}

// FromContext returns the logger enriched with any run id or source carried
// by the context. Returns the logger unchanged when the context has neither.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if ctx == nil {
		return logger
	}
	if runID := GetRunID(ctx); runID != "" {
		logger = logger.With("run_id", runID)
	}
	if source := GetSource(ctx); source != "" {
		logger = logger.With("source", source)
	}
	return logger
}
