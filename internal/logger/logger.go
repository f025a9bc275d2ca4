// Package logger provides structured slog setup plus request ID
// propagation. The controller's RequestID middleware stores an ID with
// WithRequestID and handlers pull a correlated logger back out with
// FromContext.
package logger

import (
	"context"
	"log/slog"
	"os"
)

// requestIDKey is the context key for request correlation IDs.
type requestIDKey struct{}

// New creates a structured JSON logger writing to stdout.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// WithRequestID returns a context carrying the request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID, or "" when none was set.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey{}); v != nil {
		return v.(string)
	}
	return ""
}

// FromContext returns base with the context's request_id attached, so
// every line logged while serving a request can be correlated with the
// X-Request-Id the client saw.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		return base.With("request_id", reqID)
	}
	return base
}
