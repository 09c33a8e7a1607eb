// Package usage records per-call LLM token consumption.
package usage

import (
	"context"

	"github.com/gennaro-ai/gennaro/internal/logger"
)

// Record is a single LLM call's token usage.
type Record struct {
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	DurationMS       int64  `json:"duration_ms"`
	Source           string `json:"source"`
	WorkflowID       string `json:"workflow_id,omitempty"`
	NodeID           string `json:"node_id,omitempty"`
}

// Sink receives usage records. Implementations must not block the caller
// for long; recording is best effort.
type Sink interface {
	RecordUsage(ctx context.Context, rec Record)
}

// Nop discards all records.
type Nop struct{}

func (Nop) RecordUsage(context.Context, Record) {}

// LogSink writes usage records to the structured log.
type LogSink struct{}

func (LogSink) RecordUsage(ctx context.Context, rec Record) {
	logger.Info(ctx, "LLM usage recorded",
		"provider", rec.Provider,
		"model", rec.Model,
		"promptTokens", rec.PromptTokens,
		"completionTokens", rec.CompletionTokens,
		"totalTokens", rec.TotalTokens,
		"durationMs", rec.DurationMS,
		"source", rec.Source,
		"workflowId", rec.WorkflowID,
		"nodeId", rec.NodeID,
	)
}
