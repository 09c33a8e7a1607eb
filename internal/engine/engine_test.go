package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gennaro-ai/gennaro/internal/broadcast"
	"github.com/gennaro-ai/gennaro/internal/llm"
	"github.com/gennaro-ai/gennaro/internal/workflow"
)

// scriptedAgent answers every call through next.
type scriptedAgent struct {
	next func(messages []llm.Message) (string, error)
}

func (a *scriptedAgent) Provider() string { return "test" }

func (a *scriptedAgent) Chat(_ context.Context, m []llm.Message) (string, error) {
	return a.next(m)
}

func (a *scriptedAgent) StreamChat(_ context.Context, m []llm.Message) (<-chan llm.StreamEvent, error) {
	content, err := a.next(m)
	if err != nil {
		return nil, err
	}
	ch := make(chan llm.StreamEvent, 2)
	ch <- llm.StreamEvent{Delta: content}
	ch <- llm.StreamEvent{Done: true, Usage: &llm.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}}
	close(ch)
	return ch, nil
}

// factoryFunc builds agents per model and system prompt.
type factoryFunc func(model, systemPrompt string) (Agent, error)

func (f factoryFunc) NewAgent(model, systemPrompt string, _ float64, _ int) (Agent, error) {
	return f(model, systemPrompt)
}

// echoFactory returns agents that echo the last user message with a
// per-model prefix.
func echoFactory(prefixes map[string]string) AgentFactory {
	return factoryFunc(func(model, _ string) (Agent, error) {
		prefix := prefixes[model]
		return &scriptedAgent{next: func(m []llm.Message) (string, error) {
			return prefix + m[len(m)-1].Content, nil
		}}, nil
	})
}

// sequenceFactory hands out scripted responses in order, shared across
// every agent it creates.
func sequenceFactory(responses ...string) AgentFactory {
	var mu sync.Mutex
	i := 0
	return factoryFunc(func(_, _ string) (Agent, error) {
		return &scriptedAgent{next: func([]llm.Message) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			if i >= len(responses) {
				return "", fmt.Errorf("no scripted response left")
			}
			r := responses[i]
			i++
			return r, nil
		}}, nil
	})
}

// blockingAgent never yields a token; it exists to exercise timeouts.
type blockingAgent struct{}

func (blockingAgent) Provider() string { return "test" }

func (blockingAgent) Chat(ctx context.Context, _ []llm.Message) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingAgent) StreamChat(context.Context, []llm.Message) (<-chan llm.StreamEvent, error) {
	return make(chan llm.StreamEvent), nil
}

// recorder captures broadcast events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (r *recorder) Broadcast(_ context.Context, ev broadcast.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) all() []broadcast.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broadcast.Event{}, r.events...)
}

func node(id string, nt workflow.NodeType, data workflow.Data) workflow.Node {
	if data == nil {
		data = workflow.Data{}
	}
	return workflow.Node{ID: id, Type: nt, Data: data}
}

func labeledEdge(id, source, target, label string) workflow.Edge {
	return workflow.Edge{ID: id, Source: source, Target: target, Label: label}
}

func TestRunSequentialPipeline(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		Nodes: []workflow.Node{
			node("in", workflow.NodeTypeInput, nil),
			node("writer", workflow.NodeTypeAgent, workflow.Data{"model": "m1"}),
			node("out", workflow.NodeTypeOutput, nil),
		},
		Edges: []workflow.Edge{
			edge("e1", "in", "writer"),
			edge("e2", "writer", "out"),
		},
	}

	rec := &recorder{}
	e := New(def,
		WithWorkflowID("wf-1"),
		WithBroadcaster(rec),
		WithAgentFactory(echoFactory(map[string]string{"m1": "draft: "})),
		withSettleDelay(0),
	)
	results := e.Run(context.Background(), "topic")

	assert.Equal(t, StatusCompleted, e.Status())
	assert.Equal(t, "topic", results["in"])
	assert.Equal(t, "draft: topic", results["writer"])
	assert.Equal(t, "draft: topic", results["out"])

	events := rec.all()
	require.NotEmpty(t, events)
	final := events[len(events)-1]
	assert.Equal(t, broadcast.TypeWorkflowStatus, final.Type)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Equal(t, "wf-1", final.WorkflowID)
	for _, status := range final.NodeStatuses {
		assert.Equal(t, NodeDone, status)
	}
}

func TestRunParallelAggregation(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		Nodes: []workflow.Node{
			node("in", workflow.NodeTypeInput, nil),
			node("a1", workflow.NodeTypeAgent, workflow.Data{"model": "caps"}),
			node("a2", workflow.NodeTypeAgent, workflow.Data{"model": "pref"}),
			node("agg", workflow.NodeTypeAggregator, nil),
		},
		Edges: []workflow.Edge{
			edge("e1", "in", "a1"),
			edge("e2", "in", "a2"),
			edge("e3", "a1", "agg"),
			edge("e4", "a2", "agg"),
		},
	}

	factory := factoryFunc(func(model, _ string) (Agent, error) {
		return &scriptedAgent{next: func(m []llm.Message) (string, error) {
			if model == "caps" {
				return strings.ToUpper(m[len(m)-1].Content), nil
			}
			return "p:" + m[len(m)-1].Content, nil
		}}, nil
	})

	e := New(def, WithAgentFactory(factory), withSettleDelay(0))
	results := e.Run(context.Background(), "x")

	assert.Equal(t, StatusCompleted, e.Status())
	assert.Equal(t, "X\n\n---\n\np:x", results["agg"])
}

func TestRunConditionalBranching(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		Nodes: []workflow.Node{
			node("in", workflow.NodeTypeInput, nil),
			node("cond", workflow.NodeTypeCondition, workflow.Data{
				"conditionType":  "contains",
				"conditionValue": "yes",
			}),
			node("tOut", workflow.NodeTypeOutput, nil),
			node("fOut", workflow.NodeTypeOutput, nil),
		},
		Edges: []workflow.Edge{
			edge("e1", "in", "cond"),
			labeledEdge("e2", "cond", "tOut", "true"),
			labeledEdge("e3", "cond", "fOut", "false"),
		},
	}

	e := New(def, withSettleDelay(0))
	results := e.Run(context.Background(), "yes please")

	assert.Equal(t, StatusCompleted, e.Status())
	assert.Equal(t, "yes please", results["tOut"])
	assert.Equal(t, "", results["fOut"])

	_, _, nodeStatuses, _ := e.state.snapshot(0)
	assert.Equal(t, NodeDone, nodeStatuses["fOut"])
}

func TestRunSwitchRouting(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		Nodes: []workflow.Node{
			node("in", workflow.NodeTypeInput, nil),
			node("sw", workflow.NodeTypeSwitch, workflow.Data{"switchType": "keyword"}),
			node("alphaOut", workflow.NodeTypeOutput, nil),
			node("betaOut", workflow.NodeTypeOutput, nil),
			node("defOut", workflow.NodeTypeOutput, nil),
		},
		Edges: []workflow.Edge{
			edge("e1", "in", "sw"),
			labeledEdge("e2", "sw", "alphaOut", "alpha"),
			labeledEdge("e3", "sw", "betaOut", "beta"),
			labeledEdge("e4", "sw", "defOut", "default"),
		},
	}

	e := New(def, withSettleDelay(0))
	results := e.Run(context.Background(), "route to beta now")

	assert.Equal(t, StatusCompleted, e.Status())
	assert.Equal(t, "route to beta now", results["betaOut"])
	assert.Equal(t, "", results["alphaOut"])
	assert.Equal(t, "", results["defOut"])
}

func TestRunGraphLoopScoreExit(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		Nodes: []workflow.Node{
			node("in", workflow.NodeTypeInput, nil),
			node("loop", workflow.NodeTypeLoop, workflow.Data{
				"maxIterations":     3,
				"exitConditionType": "score",
				"exitValue":         "7",
			}),
			node("writer", workflow.NodeTypeAgent, workflow.Data{"model": "m"}),
			node("out", workflow.NodeTypeOutput, nil),
		},
		Edges: []workflow.Edge{
			edge("e1", "in", "loop"),
			edge("e2", "loop", "writer"),
			edge("e3", "writer", "loop"),
			edge("e4", "loop", "out"),
		},
	}

	e := New(def,
		WithAgentFactory(sequenceFactory("draft one. Score: 4", "final. Score: 9")),
		withSettleDelay(0),
	)
	results := e.Run(context.Background(), "write a poem")

	assert.Equal(t, StatusCompleted, e.Status())
	want := "**--- Round 1 ---**\n\ndraft one. Score: 4\n\n**--- Round 2 ---**\n\nfinal. Score: 9"
	assert.Equal(t, want, results["loop"])
	assert.Equal(t, want, results["out"])
	assert.Equal(t, "final. Score: 9", results["writer"])
}

func TestRunAgentFallback(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		Nodes: []workflow.Node{
			node("a", workflow.NodeTypeAgent, workflow.Data{
				"model":         "primary",
				"fallbackModel": "secondary",
			}),
		},
	}

	factory := factoryFunc(func(model, _ string) (Agent, error) {
		if model == "primary" {
			return &scriptedAgent{next: func([]llm.Message) (string, error) {
				return "", fmt.Errorf("model overloaded")
			}}, nil
		}
		return &scriptedAgent{next: func([]llm.Message) (string, error) {
			return "ok", nil
		}}, nil
	})

	rec := &recorder{}
	e := New(def, WithAgentFactory(factory), WithBroadcaster(rec), withSettleDelay(0))
	results := e.Run(context.Background(), "hi")

	assert.Equal(t, StatusCompleted, e.Status())
	assert.Equal(t, "ok", results["a"])

	var sawMarker bool
	for _, ev := range rec.all() {
		if strings.Contains(ev.Chunk, "Fallback: primary → secondary") {
			sawMarker = true
		}
	}
	assert.True(t, sawMarker, "fallback marker should be broadcast")
}

func TestRunRetrySkip(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		Nodes: []workflow.Node{
			node("a", workflow.NodeTypeAgent, workflow.Data{
				"model":      "broken",
				"retryCount": 1,
				"retryDelay": 0,
				"onError":    "skip",
			}),
		},
	}

	calls := 0
	var mu sync.Mutex
	factory := factoryFunc(func(_, _ string) (Agent, error) {
		return &scriptedAgent{next: func([]llm.Message) (string, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			return "", fmt.Errorf("boom")
		}}, nil
	})

	e := New(def, WithAgentFactory(factory), withSettleDelay(0))
	results := e.Run(context.Background(), "hi")

	assert.Equal(t, StatusCompleted, e.Status())
	assert.Equal(t, "[skipped: error after retries]", results["a"])
	assert.Equal(t, 2, calls)
}

func TestRunNodeErrorStopsWorkflow(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		Nodes: []workflow.Node{
			node("a", workflow.NodeTypeAgent, workflow.Data{"model": "broken"}),
			node("out", workflow.NodeTypeOutput, nil),
		},
		Edges: []workflow.Edge{edge("e1", "a", "out")},
	}

	factory := factoryFunc(func(_, _ string) (Agent, error) {
		return &scriptedAgent{next: func([]llm.Message) (string, error) {
			return "", fmt.Errorf("boom")
		}}, nil
	})

	e := New(def, WithAgentFactory(factory), withSettleDelay(0))
	e.Run(context.Background(), "hi")

	assert.Equal(t, StatusError, e.Status())
	assert.Contains(t, e.Err(), "Node a:")
}

func TestRunRetryFallbackValue(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		Nodes: []workflow.Node{
			node("a", workflow.NodeTypeAgent, workflow.Data{
				"model":         "broken",
				"retryDelay":    0,
				"onError":       "fallback",
				"fallbackValue": "plan B",
			}),
		},
	}

	factory := factoryFunc(func(_, _ string) (Agent, error) {
		return &scriptedAgent{next: func([]llm.Message) (string, error) {
			return "", fmt.Errorf("boom")
		}}, nil
	})

	e := New(def, WithAgentFactory(factory), withSettleDelay(0))
	results := e.Run(context.Background(), "hi")

	assert.Equal(t, StatusCompleted, e.Status())
	assert.Equal(t, "plan B", results["a"])
}

func TestRunMetaAgentSubWorkflow(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		Nodes: []workflow.Node{
			node("meta", workflow.NodeTypeMetaAgent, workflow.Data{
				"workflowDefinition": map[string]any{
					"nodes": []any{
						map[string]any{"id": "s1", "type": "input", "data": map[string]any{"defaultValue": "sub says hi"}},
						map[string]any{"id": "s2", "type": "output", "data": map[string]any{}},
					},
					"edges": []any{
						map[string]any{"id": "se1", "source": "s1", "target": "s2"},
					},
				},
			}),
		},
	}

	e := New(def, withSettleDelay(0))
	results := e.Run(context.Background(), "")

	assert.Equal(t, StatusCompleted, e.Status())
	assert.Equal(t, "sub says hi", results["meta"])
}

func TestRunMetaAgentDepthCap(t *testing.T) {
	t.Parallel()

	// A meta-agent whose sub-workflow embeds another meta-agent; the
	// inner one inherits depth 1 and hits its cap.
	inner := map[string]any{
		"nodes": []any{map[string]any{"id": "s1", "type": "input", "data": map[string]any{}}},
	}
	def := &workflow.Definition{
		Nodes: []workflow.Node{
			node("meta", workflow.NodeTypeMetaAgent, workflow.Data{
				"maxDepth": 1,
				"workflowDefinition": map[string]any{
					"nodes": []any{
						map[string]any{
							"id":   "m2",
							"type": "meta_agent",
							"data": map[string]any{
								"maxDepth":           1,
								"workflowDefinition": inner,
							},
						},
					},
				},
			}),
		},
	}

	e := New(def, withSettleDelay(0))
	results := e.Run(context.Background(), "go")

	assert.Equal(t, "[Meta-Agent: max recursion depth (1) reached]", results["meta"])
}

func TestRunMetaAgentNoDefinition(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		Nodes: []workflow.Node{node("meta", workflow.NodeTypeMetaAgent, nil)},
	}

	e := New(def, withSettleDelay(0))
	results := e.Run(context.Background(), "go")

	assert.Equal(t, "[Meta-Agent: no sub-workflow definition configured]", results["meta"])
}

func TestRunChunkerSingleChunk(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		Nodes: []workflow.Node{
			node("ch", workflow.NodeTypeChunker, workflow.Data{"model": "m"}),
		},
	}

	rec := &recorder{}
	factory := factoryFunc(func(_, _ string) (Agent, error) {
		return &scriptedAgent{next: func(m []llm.Message) (string, error) {
			require.Contains(t, m[len(m)-1].Content, "[Chunk 1/1]")
			return "SUM", nil
		}}, nil
	})

	e := New(def, WithAgentFactory(factory), WithBroadcaster(rec), withSettleDelay(0))
	results := e.Run(context.Background(), "summarize me")

	assert.Equal(t, StatusCompleted, e.Status())
	assert.Equal(t, "SUM", results["ch"])

	var sawProgress bool
	for _, ev := range rec.all() {
		if ev.NodeStatuses["ch"] == "chunk 1/1" {
			sawProgress = true
		}
	}
	assert.True(t, sawProgress, "chunk progress should be broadcast")
}

func TestRunVariableSubstitution(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		Nodes: []workflow.Node{
			node("a1", workflow.NodeTypeAgent, workflow.Data{"model": "const", "setVariable": "x"}),
			node("a2", workflow.NodeTypeAgent, workflow.Data{"model": "tmpl"}),
			node("a3", workflow.NodeTypeAgent, workflow.Data{"model": "echo"}),
		},
		Edges: []workflow.Edge{
			edge("e1", "a1", "a2"),
			edge("e2", "a2", "a3"),
		},
	}

	factory := factoryFunc(func(model, _ string) (Agent, error) {
		return &scriptedAgent{next: func(m []llm.Message) (string, error) {
			switch model {
			case "const":
				return "V", nil
			case "tmpl":
				return "ref {var:x}", nil
			default:
				return m[len(m)-1].Content, nil
			}
		}}, nil
	})

	e := New(def, WithAgentFactory(factory), withSettleDelay(0))
	results := e.Run(context.Background(), "start")

	assert.Equal(t, "ref V", results["a3"])
}

func TestRunMalformedGraph(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		Nodes: nodes("a"),
		Edges: []workflow.Edge{edge("e1", "a", "ghost")},
	}

	e := New(def, withSettleDelay(0))
	e.Run(context.Background(), "hi")

	assert.Equal(t, StatusError, e.Status())
	assert.Contains(t, e.Err(), "malformed graph")
}

func TestRunInputDefaultValue(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		Nodes: []workflow.Node{
			node("in", workflow.NodeTypeInput, workflow.Data{"defaultValue": "fallback text"}),
			node("out", workflow.NodeTypeOutput, nil),
		},
		Edges: []workflow.Edge{edge("e1", "in", "out")},
	}

	e := New(def, withSettleDelay(0))
	results := e.Run(context.Background(), "")

	assert.Equal(t, "fallback text", results["out"])
}

func TestRunInputJoinOrder(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		Nodes: []workflow.Node{
			node("in1", workflow.NodeTypeInput, workflow.Data{"defaultValue": "first"}),
			node("in2", workflow.NodeTypeInput, workflow.Data{"defaultValue": "second"}),
			node("out", workflow.NodeTypeOutput, nil),
		},
		Edges: []workflow.Edge{
			edge("e1", "in1", "out"),
			edge("e2", "in2", "out"),
		},
	}

	e := New(def, withSettleDelay(0))
	results := e.Run(context.Background(), "")

	assert.Equal(t, "first\n\n---\n\nsecond", results["out"])
}

func TestRunTimeout(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		Nodes: []workflow.Node{
			node("stuck", workflow.NodeTypeAgent, workflow.Data{"model": "m"}),
		},
	}

	// The stream never produces, so only the timeout path can finish.
	blocking := factoryFunc(func(_, _ string) (Agent, error) {
		return blockingAgent{}, nil
	})

	e := New(def, WithAgentFactory(blocking), WithTimeout(50*time.Millisecond), withSettleDelay(0))
	start := time.Now()
	e.Run(context.Background(), "hi")

	assert.Equal(t, StatusError, e.Status())
	assert.Contains(t, e.Err(), "timed out")
	assert.Less(t, time.Since(start), time.Second)
}

func TestEvaluateCondition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		data  workflow.Data
		input string
		want  bool
	}{
		{"contains match", workflow.Data{"conditionType": "contains", "conditionValue": "Yes"}, "well, YES indeed", true},
		{"contains miss", workflow.Data{"conditionType": "contains", "conditionValue": "no"}, "yes", false},
		{"not_contains", workflow.Data{"conditionType": "not_contains", "conditionValue": "bad"}, "all good", true},
		{"score gte default", workflow.Data{"conditionType": "score_threshold"}, "Score: 8", true},
		{"score below", workflow.Data{"conditionType": "score_threshold", "conditionValue": "7"}, "Score: 5", false},
		{"score lt operator", workflow.Data{"conditionType": "score_threshold", "conditionValue": "7", "operator": "lt"}, "Score: 5", true},
		{"score no number", workflow.Data{"conditionType": "score_threshold"}, "no digits here", false},
		{"keyword in head", workflow.Data{"conditionType": "keyword", "conditionValue": "approved"}, "APPROVED by all", true},
		{"regex", workflow.Data{"conditionType": "regex", "conditionValue": `^\d+$`}, "12345", true},
		{"regex invalid", workflow.Data{"conditionType": "regex", "conditionValue": `([`}, "anything", false},
		{"length_above", workflow.Data{"conditionType": "length_above", "conditionValue": "3"}, "abcd", true},
		{"length_below default", workflow.Data{"conditionType": "length_below"}, "short", true},
		{"unknown type defaults true", workflow.Data{"conditionType": "mystery"}, "anything", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, evaluateCondition(tt.data, tt.input))
		})
	}
}

func TestParseValidatorVerdict(t *testing.T) {
	t.Parallel()

	v := parseValidatorVerdict(`{"valid": true, "reason": "looks good", "score": 9}`)
	assert.True(t, v.Valid)
	assert.Equal(t, 9, v.Score)

	v = parseValidatorVerdict("Sure! Here is my verdict:\n" + `{"valid": false, "reason": "too short", "score": 3}` + "\nHope that helps.")
	assert.False(t, v.Valid)
	assert.Equal(t, "too short", v.Reason)

	// Trailing comma needs the repair path.
	v = parseValidatorVerdict(`{"valid": true, "reason": "ok", "score": 8,}`)
	assert.True(t, v.Valid)
	assert.Equal(t, 8, v.Score)

	v = parseValidatorVerdict("no json at all")
	assert.False(t, v.Valid)
	assert.Equal(t, "Could not parse validator response", v.Reason)
}

func TestRunGraphLoopBodyFailure(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		Nodes: []workflow.Node{
			node("in", workflow.NodeTypeInput, nil),
			node("loop", workflow.NodeTypeLoop, workflow.Data{
				"maxIterations":     3,
				"exitConditionType": "score",
			}),
			node("writer", workflow.NodeTypeAgent, workflow.Data{"model": "m"}),
		},
		Edges: []workflow.Edge{
			edge("e1", "in", "loop"),
			edge("e2", "loop", "writer"),
			edge("e3", "writer", "loop"),
		},
	}

	var mu sync.Mutex
	calls := 0
	factory := factoryFunc(func(_, _ string) (Agent, error) {
		return &scriptedAgent{next: func([]llm.Message) (string, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			return "", fmt.Errorf("model unavailable")
		}}, nil
	})

	e := New(def, WithAgentFactory(factory), withSettleDelay(0))
	e.Run(context.Background(), "write")

	assert.Equal(t, StatusError, e.Status())
	assert.Contains(t, e.Err(), "Node loop:")
	assert.Contains(t, e.Err(), "loop body failed")
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestRunGraphLoopAlwaysRunsAllIterations(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		Nodes: []workflow.Node{
			node("in", workflow.NodeTypeInput, nil),
			node("loop", workflow.NodeTypeLoop, workflow.Data{
				"maxIterations":     2,
				"exitConditionType": "always",
				"exitValue":         "APPROVED",
			}),
			node("writer", workflow.NodeTypeAgent, workflow.Data{"model": "m"}),
		},
		Edges: []workflow.Edge{
			edge("e1", "in", "loop"),
			edge("e2", "loop", "writer"),
			edge("e3", "writer", "loop"),
		},
	}

	// Round one already contains the exit keyword; always ignores it.
	e := New(def,
		WithAgentFactory(sequenceFactory("APPROVED draft", "second pass")),
		withSettleDelay(0),
	)
	results := e.Run(context.Background(), "write")

	assert.Equal(t, StatusCompleted, e.Status())
	want := "**--- Round 1 ---**\n\nAPPROVED draft\n\n**--- Round 2 ---**\n\nsecond pass"
	assert.Equal(t, want, results["loop"])
}

func TestLoopExitSatisfied(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 500)
	tests := []struct {
		name       string
		exitType   string
		exitValue  string
		exitResult string
		roundInput string
		iteration  int
		want       bool
	}{
		{"keyword present", "keyword", "approved", "Looks good. APPROVED.", "", 0, true},
		{"keyword absent", "keyword", "APPROVED", "needs work", "", 0, false},
		{"keyword beyond head", "keyword", "APPROVED", long + "APPROVED", "", 0, false},
		{"keyword empty value", "keyword", "", "anything", "", 0, false},
		{"no_change first round", "no_change", "", "same", "same", 0, false},
		{"no_change stable", "no_change", "", "  same  ", "same", 1, true},
		{"no_change differs", "no_change", "", "new text", "old text", 2, false},
		{"score above threshold", "score", "7", "draft. Score: 8.5", "", 0, true},
		{"score below threshold", "score", "7", "draft. Score: 3", "", 0, false},
		{"score default threshold", "score", "", "Score: 7", "", 0, true},
		{"score no number", "score", "7", "no verdict yet", "", 0, false},
		{"always never satisfied", "always", "APPROVED", "APPROVED", "", 5, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := loopExitSatisfied(tc.exitType, tc.exitValue, tc.exitResult, tc.roundInput, tc.iteration)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRunRefinementLoop(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		Nodes: []workflow.Node{
			node("loop", workflow.NodeTypeLoop, workflow.Data{
				"maxIterations":     3,
				"exitConditionType": "keyword",
				"exitValue":         "APPROVED",
				"model":             "m",
			}),
		},
	}

	// No back-edge targets the node, so the generator/critic loop runs.
	// Call order alternates generator, critic.
	var mu sync.Mutex
	var prompts []string
	responses := []string{"draft one", "Needs more detail", "draft two", "APPROVED, ship it"}
	i := 0
	factory := factoryFunc(func(_, _ string) (Agent, error) {
		return &scriptedAgent{next: func(m []llm.Message) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			prompts = append(prompts, m[len(m)-1].Content)
			if i >= len(responses) {
				return "", fmt.Errorf("no scripted response left")
			}
			r := responses[i]
			i++
			return r, nil
		}}, nil
	})

	e := New(def, WithAgentFactory(factory), withSettleDelay(0))
	results := e.Run(context.Background(), "write a summary")

	assert.Equal(t, StatusCompleted, e.Status())
	assert.Equal(t, "draft two", results["loop"])

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, prompts, 4)
	assert.Equal(t, "write a summary", prompts[0])
	assert.Equal(t, "Review this:\n\ndraft one", prompts[1])
	want := "Original: write a summary\n\nPrevious output:\ndraft one\n\nFeedback:\nNeeds more detail\n\nImprove the content based on the feedback."
	assert.Equal(t, want, prompts[2])
	assert.Equal(t, "Review this:\n\ndraft two", prompts[3])
}

// burstAgent streams its tokens back to back with no delay between them.
type burstAgent struct{ tokens []string }

func (a burstAgent) Provider() string { return "test" }

func (a burstAgent) Chat(context.Context, []llm.Message) (string, error) {
	return strings.Join(a.tokens, ""), nil
}

func (a burstAgent) StreamChat(context.Context, []llm.Message) (<-chan llm.StreamEvent, error) {
	ch := make(chan llm.StreamEvent, len(a.tokens)+1)
	for _, tok := range a.tokens {
		ch <- llm.StreamEvent{Delta: tok}
	}
	ch <- llm.StreamEvent{Done: true}
	close(ch)
	return ch, nil
}

func TestStreamingThrottleAndFinalEmit(t *testing.T) {
	t.Parallel()

	tokens := []string{"alpha ", "beta ", "gamma ", "delta ", "omega"}
	full := strings.Join(tokens, "")
	def := &workflow.Definition{
		Nodes: []workflow.Node{
			node("a", workflow.NodeTypeAgent, workflow.Data{"model": "m"}),
		},
	}

	factory := factoryFunc(func(_, _ string) (Agent, error) {
		return burstAgent{tokens: tokens}, nil
	})
	rec := &recorder{}
	e := New(def, WithAgentFactory(factory), WithBroadcaster(rec), withSettleDelay(0))
	results := e.Run(context.Background(), "go")

	require.Equal(t, full, results["a"])

	var stream []broadcast.Event
	for _, ev := range rec.all() {
		if ev.Type == broadcast.TypeNodeStreaming && ev.NodeID == "a" {
			stream = append(stream, ev)
		}
	}
	require.NotEmpty(t, stream)

	// The burst lands inside one throttle window, so intermediates drop.
	assert.Less(t, len(stream), len(tokens)+1)

	// Partials grow monotonically and every one is a prefix of the full
	// content.
	prev := -1
	for _, ev := range stream {
		assert.True(t, strings.HasPrefix(full, ev.Partial))
		assert.Greater(t, len(ev.Partial), prev)
		prev = len(ev.Partial)
	}

	// The terminal emit always carries the complete content.
	last := stream[len(stream)-1]
	assert.Empty(t, last.Chunk)
	assert.Equal(t, full, last.Partial)
}
