package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gennaro-ai/gennaro/internal/broadcast"
	"github.com/gennaro-ai/gennaro/internal/llm"
	"github.com/gennaro-ai/gennaro/internal/logger"
	"github.com/gennaro-ai/gennaro/internal/stringutil"
	"github.com/gennaro-ai/gennaro/internal/usage"
	"github.com/gennaro-ai/gennaro/internal/workflow"
)

const (
	defaultAgentModel     = "claude-sonnet-4-5-20250929"
	defaultValidatorModel = "claude-haiku-4-5-20251001"
	defaultSystemPrompt   = "You are a helpful assistant."
)

// runAgentNode streams a chat completion for the node's input, with an
// optional fallback model when the primary fails.
func (e *Engine) runAgentNode(ctx context.Context, node *workflow.Node, input string) (string, error) {
	model := node.Data.String("model", defaultAgentModel)
	fallbackModel := node.Data.String("fallbackModel", "")
	systemPrompt := node.Data.String("systemPrompt", defaultSystemPrompt)
	temperature := node.Data.Float("temperature", 0.7)
	maxTokens := node.Data.Int("maxTokens", 4096)

	// Artifact fences carry bulky binary payloads agents should not see.
	input = stringutil.ElideArtifacts(input)

	result, primaryErr := e.streamAgent(ctx, node.ID, input, model, systemPrompt, temperature, maxTokens)
	if primaryErr == nil {
		return result, nil
	}
	if fallbackModel == "" {
		return "", primaryErr
	}

	logger.Warn(ctx, "Primary model failed, falling back",
		"nodeId", node.ID,
		"model", model,
		"fallbackModel", fallbackModel,
		"err", primaryErr,
	)
	marker := fmt.Sprintf("[Fallback: %s → %s]\n", model, fallbackModel)
	_ = e.broadcaster.Broadcast(ctx, broadcast.Event{
		Type:       broadcast.TypeNodeStreaming,
		WorkflowID: e.workflowID,
		NodeID:     node.ID,
		Chunk:      "\n" + marker,
		Partial:    marker,
	})
	return e.streamAgent(ctx, node.ID, input, fallbackModel, systemPrompt, temperature, maxTokens)
}

// streamAgent runs one streamed chat call, broadcasting throttled tokens
// and recording usage on success.
func (e *Engine) streamAgent(ctx context.Context, nodeID, input, model, systemPrompt string, temperature float64, maxTokens int) (string, error) {
	if e.agents == nil {
		return "", fmt.Errorf("no agent factory configured")
	}
	agent, err := e.agents.NewAgent(model, systemPrompt, temperature, maxTokens)
	if err != nil {
		return "", err
	}

	start := time.Now()
	messages := []llm.Message{{Role: llm.RoleUser, Content: input}}
	content, tokens, err := e.consumeStream(ctx, nodeID, agent, messages)
	if err != nil {
		return "", err
	}

	rec := usage.Record{
		Provider:   agent.Provider(),
		Model:      model,
		DurationMS: time.Since(start).Milliseconds(),
		Source:     "workflow",
		WorkflowID: e.workflowID,
		NodeID:     nodeID,
	}
	if tokens != nil {
		rec.PromptTokens = tokens.PromptTokens
		rec.CompletionTokens = tokens.CompletionTokens
		rec.TotalTokens = tokens.TotalTokens
	}
	e.usage.RecordUsage(ctx, rec)

	return content, nil
}

// consumeStream drains an agent's token stream, broadcasting partial
// content as it accumulates. The final complete content is always
// broadcast with the throttle reset.
func (e *Engine) consumeStream(ctx context.Context, nodeID string, agent Agent, messages []llm.Message) (string, *llm.Usage, error) {
	stream, err := agent.StreamChat(ctx, messages)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	var tokens *llm.Usage
	for ev := range stream {
		if ev.Error != nil {
			return "", nil, ev.Error
		}
		if ev.Usage != nil {
			tokens = ev.Usage
		}
		if ev.Delta != "" {
			b.WriteString(ev.Delta)
			e.streamToken(ctx, nodeID, ev.Delta, b.String())
		}
		if ev.Done {
			break
		}
	}
	if ctx.Err() != nil {
		return "", nil, ctx.Err()
	}

	full := b.String()
	e.streamFinal(ctx, nodeID, full)
	return full, tokens, nil
}
