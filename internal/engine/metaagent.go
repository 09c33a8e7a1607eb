package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/gennaro-ai/gennaro/internal/workflow"
)

const defaultMetaAgentDepth = 3

// runMetaAgentNode executes a sub-workflow embedded in the node's data.
// Recursion depth is tracked through the embedded definitions so deeply
// nested meta-agents bottom out instead of recursing forever.
func (e *Engine) runMetaAgentNode(ctx context.Context, node *workflow.Node, input string) (string, error) {
	defMap := node.Data.Map("workflowDefinition")
	if len(defMap) == 0 {
		return "[Meta-Agent: no sub-workflow definition configured]", nil
	}

	maxDepth := node.Data.Int("maxDepth", defaultMetaAgentDepth)
	depth := node.Data.Int("_currentDepth", 0)
	if depth >= maxDepth {
		return fmt.Sprintf("[Meta-Agent: max recursion depth (%d) reached]", maxDepth), nil
	}

	subDef, err := workflow.FromMap(defMap)
	if err != nil || len(subDef.Nodes) == 0 {
		return "[Meta-Agent: invalid workflow definition]", nil
	}

	// Nested meta-agents inherit the incremented depth.
	for i := range subDef.Nodes {
		if subDef.Nodes[i].Type == workflow.NodeTypeMetaAgent {
			if subDef.Nodes[i].Data == nil {
				subDef.Nodes[i].Data = workflow.Data{}
			}
			subDef.Nodes[i].Data["_currentDepth"] = depth + 1
		}
	}

	subID := fmt.Sprintf("%s_sub_%s", e.workflowID, node.ID)
	sub := e.subEngine(subDef, subID)
	results := sub.Run(ctx, input)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if sub.Status() == StatusError {
		return "", fmt.Errorf("sub-workflow failed: %s", sub.Err())
	}

	var outputs []string
	for _, n := range subDef.Nodes {
		if n.Type == workflow.NodeTypeOutput {
			if r, ok := results[n.ID]; ok && r != "" {
				outputs = append(outputs, r)
			}
		}
	}
	if len(outputs) > 0 {
		return strings.Join(outputs, "\n\n---\n\n"), nil
	}
	var all []string
	for _, n := range subDef.Nodes {
		if r, ok := results[n.ID]; ok && r != "" {
			all = append(all, r)
		}
	}
	return strings.Join(all, "\n\n---\n\n"), nil
}
