package logging

import (
	"context"
	"log/slog"
)

type (
	ctxKey    struct{}
	taskIDKey struct{}
)

var defaultLogger = slog.Default()

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *slog.Logger {
	return FromContextOr(ctx, defaultLogger)
}

// FromContextOr returns the logger stored in ctx, or fallback when there is
// none.
func FromContextOr(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
			return logger
		}
	}

	if fallback == nil {
		return defaultLogger
	}

	return fallback
}

// WithContext stores a logger in the context.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// WithRequestID adds a request ID to the context logger.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, slog.String("request_id", requestID))
}

// WithTraceID adds a trace ID to the context logger.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return with(ctx, slog.String("trace_id", traceID))
}

// WithCorrelationID adds a correlation ID to the context logger.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return with(ctx, slog.String("correlation_id", correlationID))
}

// WithTaskID adds a managed task ID to the context and its logger.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	ctx = context.WithValue(ctx, taskIDKey{}, taskID)
	return with(ctx, slog.String("task_id", taskID))
}

// TaskIDFromContext returns the managed task ID, or "" outside a task.
func TaskIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(taskIDKey{}).(string)
	return id
}

func with(ctx context.Context, attr slog.Attr) context.Context {
	return WithContext(ctx, FromContext(ctx).With(attr))
}

// SetDefault sets the logger used when no logger is in context.
func SetDefault(logger *slog.Logger) {
	defaultLogger = logger
	slog.SetDefault(logger)
}
