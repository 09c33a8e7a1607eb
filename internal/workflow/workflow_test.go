package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSONDefinition(t *testing.T) {
	t.Parallel()

	src := `{
		"nodes": [
			{"id": "a", "type": "input", "position": {"x": 10, "y": 20}, "data": {"default_value": "hello"}},
			{"id": "b", "type": "output", "data": {}}
		],
		"edges": [
			{"id": "e1", "source": "a", "target": "b", "label": ""}
		]
	}`

	def, err := Load([]byte(src))
	require.NoError(t, err)
	require.Len(t, def.Nodes, 2)
	require.Len(t, def.Edges, 1)

	node, ok := def.NodeByID("a")
	require.True(t, ok)
	assert.Equal(t, NodeTypeInput, node.Type)
	assert.Equal(t, "hello", node.Data.String("defaultValue", ""))
	assert.Equal(t, 10.0, node.Position.X)
}

func TestLoadRejectsUnknownEdgeTargets(t *testing.T) {
	t.Parallel()

	src := `{
		"nodes": [{"id": "a", "type": "input", "data": {}}],
		"edges": [{"id": "e1", "source": "a", "target": "ghost", "label": ""}]
	}`

	_, err := Load([]byte(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown target: ghost")
}

func TestRoundTripPreservesConsumedFields(t *testing.T) {
	t.Parallel()

	def := &Definition{
		Nodes: []Node{
			{ID: "n1", Type: NodeTypeAgent, Position: Position{X: 1, Y: 2}, Data: Data{"model": "claude-sonnet-4-5", "temperature": 0.3}},
		},
		Edges: []Edge{{ID: "e1", Source: "n1", Target: "n1", Label: "true"}},
	}

	b, err := json.Marshal(def)
	require.NoError(t, err)

	decoded, err := Load(b)
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", decoded.Nodes[0].Data.String("model", ""))
	assert.Equal(t, 0.3, decoded.Nodes[0].Data.Float("temperature", 0))
	assert.Equal(t, "true", decoded.Edges[0].Label)
	assert.Equal(t, def.Nodes[0].Position, decoded.Nodes[0].Position)
}

func TestFromMap(t *testing.T) {
	t.Parallel()

	m := map[string]any{
		"nodes": []any{
			map[string]any{"id": "x", "type": "input", "data": map[string]any{"default_value": "v"}},
		},
		"edges": []any{},
	}

	def, err := FromMap(m)
	require.NoError(t, err)
	require.Len(t, def.Nodes, 1)
	assert.Equal(t, "v", def.Nodes[0].Data.String("defaultValue", ""))
}

func TestDataAccessors(t *testing.T) {
	t.Parallel()

	d := Data{
		"retry_count":  "3",
		"temperature":  0.5,
		"maxTokens":    float64(1024),
		"smtpTls":      "false",
		"confirm":      true,
		"customParams": `{"k":"v"}`,
	}.Normalize()

	assert.Equal(t, 3, d.Int("retryCount", 0))
	assert.Equal(t, 0.5, d.Float("temperature", 0.7))
	assert.Equal(t, 1024, d.Int("maxTokens", 0))
	assert.False(t, d.Bool("smtpTls", true))
	assert.True(t, d.Bool("confirm", false))
	assert.Equal(t, "fallback", d.String("missing", "fallback"))
	assert.Equal(t, `{"k":"v"}`, d.String("customParams", ""))
}

func TestNormalizePrefersCamelCase(t *testing.T) {
	t.Parallel()

	d := Data{"query_template": "snake", "queryTemplate": "camel", "_current_depth": 2}.Normalize()
	assert.Equal(t, "camel", d.String("queryTemplate", ""))
	assert.Equal(t, 2, d.Int("_currentDepth", 0))
}

func TestValidateReportsAllProblems(t *testing.T) {
	t.Parallel()

	def := &Definition{
		Nodes: []Node{{ID: "a", Type: NodeTypeInput}, {ID: "a", Type: NodeTypeOutput}},
		Edges: []Edge{{ID: "e1", Source: "ghost", Target: "a"}},
	}
	err := def.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate node id: a")
	assert.Contains(t, err.Error(), "unknown source: ghost")
}
