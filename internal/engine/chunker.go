package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/gennaro-ai/gennaro/internal/llm"
	"github.com/gennaro-ai/gennaro/internal/stringutil"
	"github.com/gennaro-ai/gennaro/internal/workflow"
)

// runChunkerNode splits the input into overlapping windows and runs the
// same agent prompt over each, streaming the aggregate as chunks finish.
func (e *Engine) runChunkerNode(ctx context.Context, node *workflow.Node, input string) (string, error) {
	if e.agents == nil {
		return "", fmt.Errorf("no agent factory configured")
	}

	chunkSize := node.Data.Int("chunkSize", 2000)
	if chunkSize < 1 {
		chunkSize = 2000
	}
	overlap := node.Data.Int("overlap", 200)
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	separator := node.Data.String("separator", "\n\n---\n\n")
	model := node.Data.String("model", defaultAgentModel)
	systemPrompt := node.Data.String("systemPrompt", "Process the following chunk of text:")
	temperature := node.Data.Float("temperature", 0.7)
	maxTokens := node.Data.Int("maxTokens", 4096)

	chunks := stringutil.SplitWindows(input, chunkSize, overlap)
	if len(chunks) == 0 {
		return "", nil
	}

	agent, err := e.agents.NewAgent(model, systemPrompt, temperature, maxTokens)
	if err != nil {
		return "", err
	}

	done := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		prompt := fmt.Sprintf("[Chunk %d/%d]\n\n%s", i+1, len(chunks), chunk)
		content, _, err := e.consumeChunkStream(ctx, node.ID, agent, prompt, done, separator)
		if err != nil {
			return "", err
		}
		done = append(done, content)
		e.emitProgress(ctx, node.ID, fmt.Sprintf("chunk %d/%d", i+1, len(chunks)))
	}
	return strings.Join(done, separator), nil
}

// consumeChunkStream streams one chunk's completion, broadcasting the
// aggregate of already-finished chunks plus the in-flight partial.
func (e *Engine) consumeChunkStream(ctx context.Context, nodeID string, agent Agent, prompt string, done []string, separator string) (string, *llm.Usage, error) {
	events, err := agent.StreamChat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		return "", nil, err
	}
	var sb strings.Builder
	var usage *llm.Usage
	for ev := range events {
		if ev.Error != nil {
			return "", nil, ev.Error
		}
		if ev.Usage != nil {
			usage = ev.Usage
		}
		if ev.Delta != "" {
			sb.WriteString(ev.Delta)
			partial := strings.Join(append(append([]string{}, done...), sb.String()), separator)
			e.streamToken(ctx, nodeID, ev.Delta, partial)
		}
		if ev.Done {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	full := strings.Join(append(append([]string{}, done...), sb.String()), separator)
	e.streamFinal(ctx, nodeID, full)
	return sb.String(), usage, nil
}
