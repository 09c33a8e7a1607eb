package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gennaro-ai/gennaro/internal/logger"
	"github.com/gennaro-ai/gennaro/internal/workflow"
)

// executeWithRetry runs a node through its configured retry policy.
// Domain error strings returned by handlers are results, not failures;
// only returned errors are retried.
func (e *Engine) executeWithRetry(ctx context.Context, node *workflow.Node, initialInput string) (string, error) {
	retryCount := node.Data.Int("retryCount", 0)
	retryDelay := node.Data.Int("retryDelay", 2)
	onError := node.Data.String("onError", "stop")
	fallbackValue := node.Data.RawString("fallbackValue", "")

	var lastErr error
	for attempt := 0; attempt <= retryCount; attempt++ {
		result, err := e.executeNode(ctx, node, initialInput)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt < retryCount {
			wait := time.Duration(retryDelay*(attempt+1)) * time.Second
			logger.Warn(ctx, "Node attempt failed, retrying",
				"nodeId", node.ID,
				"attempt", attempt+1,
				"maxAttempts", retryCount+1,
				"err", err,
				"wait", wait,
			)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	switch onError {
	case "skip":
		return "[skipped: error after retries]", nil
	case "fallback":
		return fallbackValue, nil
	}
	return "", lastErr
}

// executeNode collects the node's input, applies variable substitution,
// and dispatches on the node type.
func (e *Engine) executeNode(ctx context.Context, node *workflow.Node, initialInput string) (string, error) {
	input := e.collectInput(node.ID, initialInput)
	input = e.state.substituteVariables(input)

	switch node.Type {
	case workflow.NodeTypeInput:
		return e.runInputNode(ctx, node, input)
	case workflow.NodeTypeOutput:
		return input, nil
	case workflow.NodeTypeAgent:
		return e.runAgentNode(ctx, node, input)
	case workflow.NodeTypeTool:
		return e.runToolNode(ctx, node, input)
	case workflow.NodeTypeAggregator:
		return e.runAggregatorNode(node), nil
	case workflow.NodeTypeCondition:
		return e.runConditionNode(node, input), nil
	case workflow.NodeTypeLoop:
		return e.runLoopNode(ctx, node, input)
	case workflow.NodeTypeMetaAgent:
		return e.runMetaAgentNode(ctx, node, input)
	case workflow.NodeTypeChunker:
		return e.runChunkerNode(ctx, node, input)
	case workflow.NodeTypeDelay:
		return e.runDelayNode(ctx, node, input)
	case workflow.NodeTypeSwitch:
		return e.runSwitchNode(node, input), nil
	case workflow.NodeTypeValidator:
		return e.runValidatorNode(ctx, node, input)
	}
	return input, nil
}

// runInputNode resolves the run's entry value. A database-typed input
// delegates to the database tool; a fileId resolves through the file
// store. Otherwise the collected input wins, then defaultValue, source
// and label.
func (e *Engine) runInputNode(ctx context.Context, node *workflow.Node, input string) (string, error) {
	if node.Data.String("inputType", "text") == "database" {
		return e.runDatabaseInput(ctx, node), nil
	}

	if fileID := node.Data.String("fileId", ""); fileID != "" && e.files != nil {
		path, err := e.files.ResolveFilePath(ctx, fileID)
		if err != nil {
			logger.Warn(ctx, "File id resolution failed", "fileId", fileID, "err", err)
		} else if path != "" {
			return path, nil
		}
	}

	if input != "" {
		return input, nil
	}
	if v := node.Data.String("defaultValue", ""); v != "" {
		return v, nil
	}
	if v := node.Data.String("source", ""); v != "" {
		return v, nil
	}
	return node.Data.String("label", ""), nil
}

// runAggregatorNode combines parent results with the configured strategy.
// The summarize strategy joins like concatenate and leaves summarization
// to a downstream agent.
func (e *Engine) runAggregatorNode(node *workflow.Node) string {
	strategy := node.Data.String("strategy", "concatenate")
	separator := node.Data.String("separator", inputJoinSeparator)

	var parts []string
	for _, edge := range e.graph.Incoming(node.ID) {
		if e.state.isBlocked(edge.ID) {
			continue
		}
		parts = append(parts, e.state.result(edge.Source))
	}
	combined := strings.Join(parts, separator)

	if strategy == "custom" {
		template := node.Data.String("customTemplate", "{inputs}")
		return strings.ReplaceAll(template, "{inputs}", combined)
	}
	return combined
}

const maxDelaySeconds = 300

// runDelayNode sleeps the configured number of seconds, capped at five
// minutes, then passes the input through.
func (e *Engine) runDelayNode(ctx context.Context, node *workflow.Node, input string) (string, error) {
	delay := node.Data.Float("delaySeconds", 1)
	if delay < 0 {
		delay = 0
	}
	if delay > maxDelaySeconds {
		delay = maxDelaySeconds
	}
	e.emitProgress(ctx, node.ID, fmt.Sprintf("waiting %gs", delay))
	select {
	case <-time.After(time.Duration(delay * float64(time.Second))):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return input, nil
}
