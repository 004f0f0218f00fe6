// Package observability provides logging helpers, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
)

// WSLogger provides structured logging for websocket and live subscription events.
// Records go through slog.Default, which the middleware package points at the
// context-aware application logger.
type WSLogger struct {
	hubName string
}

// NewWSLogger creates a new WSLogger for the given hub.
func NewWSLogger(hubName string) *WSLogger {
	return &WSLogger{hubName: hubName}
}

// LogConnect logs a websocket connection event.
func (l *WSLogger) LogConnect(ctx context.Context, userID string) {
	slog.InfoContext(ctx, "websocket connected",
		slog.String("hub", l.hubName),
		slog.String("user_id", userID),
	)
}

// LogDisconnect logs a websocket disconnection event.
func (l *WSLogger) LogDisconnect(ctx context.Context, userID, reason string) {
	slog.InfoContext(ctx, "websocket disconnected",
		slog.String("hub", l.hubName),
		slog.String("user_id", userID),
		slog.String("reason", reason),
	)
}

// LogError logs a websocket or subscription error.
func (l *WSLogger) LogError(ctx context.Context, topic string, err error, eventType string) {
	slog.ErrorContext(ctx, "websocket error",
		slog.String("hub", l.hubName),
		slog.String("topic", topic),
		slog.String("event_type", eventType),
		slog.String("error", err.Error()),
	)
}

// LogMessage logs an incoming websocket message at debug level.
func (l *WSLogger) LogMessage(ctx context.Context, topic, messageType string) {
	slog.DebugContext(ctx, "websocket message",
		slog.String("hub", l.hubName),
		slog.String("topic", topic),
		slog.String("message_type", messageType),
	)
}

// LogAsyncOperationError logs a failed fire-and-forget operation.
func LogAsyncOperationError(ctx context.Context, operation string, err error, attrs ...any) {
	attrs = append([]any{
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	}, attrs...)
	slog.ErrorContext(ctx, "async operation failed", attrs...)
}
