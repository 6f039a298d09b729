package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for the trace ID of one update
	TraceIDKey ContextKey = "trace_id"
	// UserIDKey is the context key for the Telegram user being served
	UserIDKey ContextKey = "user_id"
	// UpdateIDKey is the context key for the Telegram update ID
	UpdateIDKey ContextKey = "update_id"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID  string
	UserID   int64
	UpdateID int
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithUserID adds a user ID to the context
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithUpdateID adds an update ID to the context
func WithUpdateID(ctx context.Context, updateID int) context.Context {
	return context.WithValue(ctx, UpdateIDKey, updateID)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetUserID retrieves the user ID from the context
func GetUserID(ctx context.Context) int64 {
	if userID, ok := ctx.Value(UserIDKey).(int64); ok {
		return userID
	}
	return 0
}

// GetUpdateID retrieves the update ID from the context
func GetUpdateID(ctx context.Context) int {
	if updateID, ok := ctx.Value(UpdateIDKey).(int); ok {
		return updateID
	}
	return 0
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:  GetTraceID(ctx),
		UserID:   GetUserID(ctx),
		UpdateID: GetUpdateID(ctx),
	}
}

// NewUpdateContext starts tracing for one update from userID. A trace ID
// already present is kept.
func NewUpdateContext(ctx context.Context, userID int64, updateID int) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	ctx = WithUserID(ctx, userID)
	if updateID != 0 {
		ctx = WithUpdateID(ctx, updateID)
	}
	return ctx
}
