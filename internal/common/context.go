package common

import (
	"context"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRunID    contextKey = "run_id"
	ContextKeySourceID contextKey = "source_id"
)

// WithRunID adds a batch run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// RunIDFromContext extracts the run ID from context
func RunIDFromContext(ctx context.Context) string {
	if runID, ok := ctx.Value(ContextKeyRunID).(string); ok {
		return runID
	}
	return ""
}

// WithSourceID adds the document being processed to the context
func WithSourceID(ctx context.Context, sourceID string) context.Context {
	return context.WithValue(ctx, ContextKeySourceID, sourceID)
}

// SourceIDFromContext extracts the source document ID from context
func SourceIDFromContext(ctx context.Context) string {
	if sourceID, ok := ctx.Value(ContextKeySourceID).(string); ok {
		return sourceID
	}
	return ""
}
