// Package observability provides context-scoped logging helpers shared by
// handlers and adapters.
package observability

import (
	"context"
	"log/slog"
)

type loggerContextKey struct{}

type requestIDContextKey struct{}

// ContextWithLogger attaches a non-nil logger to the context.
func ContextWithLogger(ctx context.Context, lg *slog.Logger) context.Context {
	if ctx == nil || lg == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerContextKey{}, lg)
}

// LoggerFromContext returns the context logger, or slog.Default when absent.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if lg, ok := ctx.Value(loggerContextKey{}).(*slog.Logger); ok && lg != nil {
			return lg
		}
	}
	return slog.Default()
}

// ContextWithRequestID stores the webhook delivery's request id so the AI and
// CRM clients can correlate their logs with the originating request.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext retrieves the request id, or "" when none is present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx != nil {
		if rid, ok := ctx.Value(requestIDContextKey{}).(string); ok {
			return rid
		}
	}
	return ""
}
