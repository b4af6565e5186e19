package logger

import (
	"context"
	"log/slog"
	"time"
)

type ContextKey string

const (
	RequestIDKey        ContextKey = "request_id"
	UserIDKey           ContextKey = "user_id"
	BrowserContextIDKey ContextKey = "browser_context_id"
	OperationKey        ContextKey = "operation"
)

// GlobalContext is set by Init.
var GlobalContext = NewContextLogger(slog.Default())

// ContextLogger adds request-scoped business keys to log entries.
type ContextLogger struct {
	logger *slog.Logger
}

func NewContextLogger(logger *slog.Logger) *ContextLogger {
	return &ContextLogger{logger: logger}
}

// WithContext returns a logger carrying every business key set on ctx.
func (cl *ContextLogger) WithContext(ctx context.Context) *slog.Logger {
	var args []any
	for _, key := range []ContextKey{RequestIDKey, UserIDKey, BrowserContextIDKey, OperationKey} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			args = append(args, string(key), v)
		}
	}
	if len(args) == 0 {
		return cl.logger
	}
	return cl.logger.With(args...)
}

func (cl *ContextLogger) LogDuration(ctx context.Context, operation string, duration time.Duration) {
	cl.WithContext(ctx).InfoContext(ctx, "operation completed",
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
	)
}

func (cl *ContextLogger) LogError(ctx context.Context, operation string, err error) {
	cl.WithContext(ctx).ErrorContext(ctx, "operation failed",
		"operation", operation,
		"error", err,
	)
}

// FromContext is shorthand for GlobalContext.WithContext(ctx).
func FromContext(ctx context.Context) *slog.Logger {
	return GlobalContext.WithContext(ctx)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func WithBrowserContextID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, BrowserContextIDKey, id)
}

func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, OperationKey, operation)
}
