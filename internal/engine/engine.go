// Package engine executes workflow definitions level by level. A workflow
// is a graph of typed nodes; the engine removes back-edges, schedules the
// remaining DAG in topological waves, and routes text between nodes.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gennaro-ai/gennaro/internal/broadcast"
	"github.com/gennaro-ai/gennaro/internal/filestore"
	"github.com/gennaro-ai/gennaro/internal/llm"
	"github.com/gennaro-ai/gennaro/internal/logger"
	"github.com/gennaro-ai/gennaro/internal/tool"
	"github.com/gennaro-ai/gennaro/internal/usage"
	"github.com/gennaro-ai/gennaro/internal/workflow"
)

const (
	// streamThrottle limits token broadcasts per node.
	streamThrottle = 80 * time.Millisecond
	// resultTruncateAt caps result strings in non-terminal status events.
	resultTruncateAt = 500
	// levelSettleDelay lets the UI render the running markers before
	// results start arriving.
	levelSettleDelay = 300 * time.Millisecond

	inputJoinSeparator = "\n\n---\n\n"
)

// Agent is the engine's view of a streaming chat model.
type Agent interface {
	Provider() string
	Chat(ctx context.Context, messages []llm.Message) (string, error)
	StreamChat(ctx context.Context, messages []llm.Message) (<-chan llm.StreamEvent, error)
}

// AgentFactory creates agents for a model ID with a system prompt and
// sampling parameters.
type AgentFactory interface {
	NewAgent(model, systemPrompt string, temperature float64, maxTokens int) (Agent, error)
}

// Engine runs one workflow definition. It is single-use: construct with
// New, call Run once.
type Engine struct {
	def        *workflow.Definition
	graph      *Graph
	workflowID string

	broadcaster broadcast.Broadcaster
	agents      AgentFactory
	tools       *tool.Registry
	files       filestore.Store
	usage       usage.Sink
	timeout     time.Duration

	// settleDelay is configurable so tests do not pay the UI delay.
	settleDelay time.Duration

	state    *runState
	graphErr error
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkflowID tags broadcasts and usage records with an identifier.
func WithWorkflowID(id string) Option {
	return func(e *Engine) { e.workflowID = id }
}

// WithBroadcaster sets the event sink. Defaults to broadcast.Nop.
func WithBroadcaster(b broadcast.Broadcaster) Option {
	return func(e *Engine) {
		if b != nil {
			e.broadcaster = b
		}
	}
}

// WithAgentFactory sets the factory used by agent, validator, loop and
// chunker nodes.
func WithAgentFactory(f AgentFactory) Option {
	return func(e *Engine) { e.agents = f }
}

// WithTools sets the tool registry. Defaults to the process registry.
func WithTools(r *tool.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.tools = r
		}
	}
}

// WithFileStore sets the resolver for input-node file ids.
func WithFileStore(s filestore.Store) Option {
	return func(e *Engine) { e.files = s }
}

// WithUsageSink sets the sink for LLM usage records.
func WithUsageSink(s usage.Sink) Option {
	return func(e *Engine) {
		if s != nil {
			e.usage = s
		}
	}
}

// WithTimeout bounds the whole run. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

func withSettleDelay(d time.Duration) Option {
	return func(e *Engine) { e.settleDelay = d }
}

// New analyzes the definition and prepares a run. A malformed graph is
// reported on the first Run call rather than here, so Run never needs a
// second error path at call sites.
func New(def *workflow.Definition, opts ...Option) *Engine {
	e := &Engine{
		def:         def,
		broadcaster: broadcast.Nop,
		tools:       tool.Default(),
		usage:       usage.Nop{},
		settleDelay: levelSettleDelay,
	}
	for _, opt := range opts {
		opt(e)
	}

	var ids []string
	for _, n := range def.Nodes {
		ids = append(ids, n.ID)
	}
	e.state = newRunState(ids)

	e.graph, e.graphErr = Analyze(def)
	return e
}

// Status returns the pipeline status string.
func (e *Engine) Status() string {
	status, _, _, _ := e.state.snapshot(0)
	return status
}

// Err returns the run's error message, if any.
func (e *Engine) Err() string {
	_, errMsg, _, _ := e.state.snapshot(0)
	return errMsg
}

// Run executes the workflow and returns the results map. It never
// returns an error: fatal failures surface as status "error" plus the
// partial results accumulated up to the failure.
func (e *Engine) Run(ctx context.Context, initialInput string) map[string]string {
	if e.graphErr != nil {
		e.state.setError(e.graphErr.Error())
		e.emit(ctx, false)
		return e.state.resultsCopy()
	}

	if e.timeout > 0 {
		runCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		done := make(chan map[string]string, 1)
		go func() {
			done <- e.runInner(runCtx, initialInput)
		}()
		select {
		case results := <-done:
			return results
		case <-runCtx.Done():
			e.state.setError(fmt.Sprintf("Workflow timed out after %ds", int(e.timeout.Seconds())))
			e.emit(ctx, false)
			return e.state.resultsCopy()
		}
	}
	return e.runInner(ctx, initialInput)
}

func (e *Engine) runInner(ctx context.Context, initialInput string) map[string]string {
	e.state.setStatus(StatusRunning)
	e.emit(ctx, false)

	for _, level := range e.graph.TopologicalLevels() {
		// Skip loop-owned nodes; propagate branch skipping for nodes
		// whose every incoming edge is blocked.
		var active []string
		for _, nodeID := range level {
			if e.state.isSkipped(nodeID) {
				continue
			}
			incoming := e.graph.Incoming(nodeID)
			if len(incoming) > 0 && e.allBlocked(incoming) {
				e.state.markSkipped(nodeID)
				for _, out := range e.graph.Outgoing(nodeID) {
					e.state.blockEdge(out.ID)
				}
				e.emit(ctx, false)
				continue
			}
			active = append(active, nodeID)
		}
		if len(active) == 0 {
			continue
		}

		for _, nodeID := range active {
			e.state.setNodeStatus(nodeID, NodeRunning)
		}
		e.emit(ctx, false)
		select {
		case <-time.After(e.settleDelay):
		case <-ctx.Done():
			e.state.setError(ctx.Err().Error())
			e.emit(ctx, false)
			return e.state.resultsCopy()
		}

		if len(active) == 1 {
			nodeID := active[0]
			result, err := e.executeWithRetry(ctx, e.graph.Node(nodeID), initialInput)
			if err != nil {
				e.state.setNodeStatus(nodeID, NodeError)
				e.state.setError(fmt.Sprintf("Node %s: %v", nodeID, err))
				e.emit(ctx, false)
				return e.state.resultsCopy()
			}
			e.completeNode(nodeID, result)
			e.emit(ctx, false)
			continue
		}

		// Same-level peers run in parallel and all finish before the
		// next level starts.
		type outcome struct {
			nodeID string
			result string
			err    error
		}
		outcomes := make([]outcome, len(active))
		g, groupCtx := errgroup.WithContext(ctx)
		for i, nodeID := range active {
			g.Go(func() error {
				result, err := e.executeWithRetry(groupCtx, e.graph.Node(nodeID), initialInput)
				outcomes[i] = outcome{nodeID: nodeID, result: result, err: err}
				return nil
			})
		}
		_ = g.Wait()

		hasError := false
		for _, o := range outcomes {
			if o.err != nil {
				e.state.setNodeStatus(o.nodeID, NodeError)
				e.state.setError(fmt.Sprintf("Node %s: %v", o.nodeID, o.err))
				hasError = true
				continue
			}
			e.completeNode(o.nodeID, o.result)
		}
		e.emit(ctx, false)
		if hasError {
			return e.state.resultsCopy()
		}
	}

	e.state.setStatus(StatusCompleted)
	e.emit(ctx, true)
	return e.state.resultsCopy()
}

// completeNode stores a node's result and handles setVariable capture.
func (e *Engine) completeNode(nodeID, result string) {
	e.state.setResult(nodeID, result)
	if name := e.graph.Node(nodeID).Data.String("setVariable", ""); name != "" {
		e.state.setVariable(name, result)
	}
}

func (e *Engine) allBlocked(edges []workflow.Edge) bool {
	for _, edge := range edges {
		if !e.state.isBlocked(edge.ID) {
			return false
		}
	}
	return true
}

// collectInput joins the results of unblocked incoming edges, or falls
// back to the run's initial input for roots and fully blocked nodes.
func (e *Engine) collectInput(nodeID, initialInput string) string {
	incoming := e.graph.Incoming(nodeID)
	if len(incoming) == 0 {
		return initialInput
	}
	var parts []string
	for _, edge := range incoming {
		if e.state.isBlocked(edge.ID) {
			continue
		}
		parts = append(parts, e.state.result(edge.Source))
	}
	if len(parts) == 0 {
		return initialInput
	}
	return strings.Join(parts, inputJoinSeparator)
}

// emit broadcasts the current pipeline status. The terminal completed
// event carries full results; everything else truncates for the wire.
func (e *Engine) emit(ctx context.Context, fullResults bool) {
	truncateAt := resultTruncateAt
	if fullResults {
		truncateAt = 0
	}
	status, errMsg, nodeStatuses, results := e.state.snapshot(truncateAt)
	err := e.broadcaster.Broadcast(ctx, broadcast.Event{
		Type:         broadcast.TypeWorkflowStatus,
		WorkflowID:   e.workflowID,
		Status:       status,
		NodeStatuses: nodeStatuses,
		Results:      results,
		Error:        errMsg,
	})
	if err != nil {
		logger.Debug(ctx, "Broadcast failed", "err", err)
	}
}

// emitProgress broadcasts a transient per-node progress string such as
// "loop 2/4" without touching stored node statuses.
func (e *Engine) emitProgress(ctx context.Context, nodeID, progress string) {
	_ = e.broadcaster.Broadcast(ctx, broadcast.Event{
		Type:         broadcast.TypeWorkflowStatus,
		WorkflowID:   e.workflowID,
		Status:       StatusRunning,
		NodeStatuses: map[string]string{nodeID: progress},
		Results:      map[string]string{},
	})
}

// streamToken broadcasts one streaming token for a node, throttled.
func (e *Engine) streamToken(ctx context.Context, nodeID, chunk, partial string) {
	if !e.state.allowStreamEmit(nodeID, streamThrottle) {
		return
	}
	_ = e.broadcaster.Broadcast(ctx, broadcast.Event{
		Type:       broadcast.TypeNodeStreaming,
		WorkflowID: e.workflowID,
		NodeID:     nodeID,
		Chunk:      chunk,
		Partial:    partial,
	})
}

// streamFinal resets the throttle and broadcasts the complete content.
func (e *Engine) streamFinal(ctx context.Context, nodeID, full string) {
	e.state.resetStreamThrottle(nodeID)
	e.streamToken(ctx, nodeID, "", full)
}
