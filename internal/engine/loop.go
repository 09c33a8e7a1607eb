package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gennaro-ai/gennaro/internal/llm"
	"github.com/gennaro-ai/gennaro/internal/stringutil"
	"github.com/gennaro-ai/gennaro/internal/workflow"
)

// runLoopNode drives either a graph-level loop (back-edges point at this
// node) or, absent back-edges, an internal generator/critic refinement
// loop.
func (e *Engine) runLoopNode(ctx context.Context, node *workflow.Node, input string) (string, error) {
	maxIter := node.Data.Int("maxIterations", 3)
	exitType := node.Data.String("exitConditionType", "keyword")
	exitValue := node.Data.String("exitValue", "APPROVED")

	var loopBackEdges []workflow.Edge
	for _, be := range e.graph.BackEdges() {
		if be.Target == node.ID {
			loopBackEdges = append(loopBackEdges, be)
		}
	}
	if len(loopBackEdges) > 0 {
		return e.runGraphLoop(ctx, node, input, loopBackEdges, maxIter, exitType, exitValue)
	}
	return e.runRefinementLoop(ctx, node, input, maxIter, exitType, exitValue)
}

// runGraphLoop executes the loop body subgraph repeatedly as a
// sub-engine, feeding each round's exit result into the next, until the
// exit condition holds or maxIterations is reached. Body nodes are
// claimed from the top-level scheduler via skip_nodes.
func (e *Engine) runGraphLoop(ctx context.Context, node *workflow.Node, input string, backEdges []workflow.Edge, maxIter int, exitType, exitValue string) (string, error) {
	bodyIDs := make(map[string]bool)
	for _, be := range backEdges {
		for id := range e.graph.LoopBody(node.ID, be.Source) {
			bodyIDs[id] = true
		}
	}
	if len(bodyIDs) == 0 {
		return input, nil
	}
	e.state.addSkipNodes(bodyIDs)

	backEdgeIDs := make(map[string]bool, len(e.graph.BackEdges()))
	for _, be := range e.graph.BackEdges() {
		backEdgeIDs[be.ID] = true
	}

	var bodyNodes []workflow.Node
	for _, n := range e.def.Nodes {
		if bodyIDs[n.ID] {
			bodyNodes = append(bodyNodes, n)
		}
	}
	var bodyEdges []workflow.Edge
	for _, edge := range e.def.Edges {
		if bodyIDs[edge.Source] && bodyIDs[edge.Target] && !backEdgeIDs[edge.ID] {
			bodyEdges = append(bodyEdges, edge)
		}
	}
	subDef := &workflow.Definition{Nodes: bodyNodes, Edges: bodyEdges}

	// The back-edge source is the exit node whose result each round
	// feeds the exit condition and the next iteration.
	exitNodeID := backEdges[0].Source

	var transcript []string
	current := input

	for iteration := 0; iteration < maxIter; iteration++ {
		e.emitProgress(ctx, node.ID, fmt.Sprintf("loop %d/%d", iteration+1, maxIter))
		for id := range bodyIDs {
			e.state.setNodeStatus(id, NodeRunning)
		}
		e.emit(ctx, false)

		sub := e.subEngine(subDef, e.workflowID)
		results := sub.Run(ctx, current)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		for id, result := range results {
			e.state.setResult(id, result)
		}
		if sub.Status() == StatusError {
			return "", fmt.Errorf("loop body failed: %s", sub.Err())
		}

		exitResult := results[exitNodeID]
		transcript = append(transcript, fmt.Sprintf("**--- Round %d ---**\n\n%s", iteration+1, exitResult))
		e.emit(ctx, false)

		if exitType != "always" && loopExitSatisfied(exitType, exitValue, exitResult, current, iteration) {
			break
		}
		current = exitResult
	}

	for id := range bodyIDs {
		e.state.setNodeStatus(id, NodeDone)
	}
	return strings.Join(transcript, "\n\n"), nil
}

// loopExitSatisfied checks the graph-loop exit condition for one round.
// no_change compares against the round's input by contract.
func loopExitSatisfied(exitType, exitValue, exitResult, roundInput string, iteration int) bool {
	switch exitType {
	case "keyword":
		head := strings.ToUpper(exitResult)
		if len(head) > 500 {
			head = head[:500]
		}
		return exitValue != "" && strings.Contains(head, strings.ToUpper(exitValue))
	case "no_change":
		return iteration > 0 && strings.TrimSpace(exitResult) == strings.TrimSpace(roundInput)
	case "score":
		score, ok := stringutil.LastNumber(exitResult)
		if !ok {
			return false
		}
		threshold := 7.0
		if exitValue != "" {
			if f, err := strconv.ParseFloat(exitValue, 64); err == nil {
				threshold = f
			}
		}
		return score >= threshold
	}
	return false
}

// subEngine builds a child engine sharing this engine's adapters and
// broadcaster.
func (e *Engine) subEngine(def *workflow.Definition, workflowID string) *Engine {
	return New(def,
		WithWorkflowID(workflowID),
		WithBroadcaster(e.broadcaster),
		WithAgentFactory(e.agents),
		WithTools(e.tools),
		WithFileStore(e.files),
		WithUsageSink(e.usage),
		withSettleDelay(e.settleDelay),
	)
}

// runRefinementLoop alternates a generator and a critic agent: the
// generator's output is accepted once the critic's verdict starts with
// the stop token, otherwise the feedback is folded into the next prompt.
func (e *Engine) runRefinementLoop(ctx context.Context, node *workflow.Node, input string, maxIter int, exitType, exitValue string) (string, error) {
	if e.agents == nil {
		return "", fmt.Errorf("no agent factory configured")
	}

	stopCondition := exitValue
	if stopCondition == "" {
		stopCondition = node.Data.String("stopCondition", "PASS")
	}
	model := node.Data.String("model", defaultAgentModel)
	refinementPrompt := node.Data.String("refinementPrompt", "Improve the content based on the feedback.")

	generator, err := e.agents.NewAgent(model, "Generate the best possible output for the given task.", 0.7, 4096)
	if err != nil {
		return "", err
	}
	criticPrompt := fmt.Sprintf(
		"Review the output. If it meets quality standards, respond with %s. Otherwise, provide specific feedback for improvement.",
		stopCondition)
	critic, err := e.agents.NewAgent(model, criticPrompt, 0.7, 4096)
	if err != nil {
		return "", err
	}

	current := input
	var genContent string
	for iteration := 0; iteration < maxIter; iteration++ {
		genContent, _, err = e.consumeStream(ctx, node.ID, generator, []llm.Message{{Role: llm.RoleUser, Content: current}})
		if err != nil {
			return "", err
		}

		criticResp, err := critic.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: "Review this:\n\n" + genContent}})
		if err != nil {
			return "", err
		}
		if exitType == "keyword" {
			head := strings.ToUpper(criticResp)
			if len(head) > 100 {
				head = head[:100]
			}
			if strings.Contains(head, strings.ToUpper(stopCondition)) {
				return genContent, nil
			}
		}
		current = fmt.Sprintf(
			"Original: %s\n\nPrevious output:\n%s\n\nFeedback:\n%s\n\n%s",
			input, genContent, criticResp, refinementPrompt)
	}
	return genContent, nil
}
