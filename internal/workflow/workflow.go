// Package workflow defines the workflow graph model consumed by the engine.
package workflow

import (
	"fmt"

	coreerrors "github.com/gennaro-ai/gennaro/internal/errors"
)

// NodeType identifies the behavior of a workflow node.
type NodeType string

const (
	NodeTypeInput      NodeType = "input"
	NodeTypeOutput     NodeType = "output"
	NodeTypeAgent      NodeType = "agent"
	NodeTypeTool       NodeType = "tool"
	NodeTypeAggregator NodeType = "aggregator"
	NodeTypeCondition  NodeType = "condition"
	NodeTypeSwitch     NodeType = "switch"
	NodeTypeLoop       NodeType = "loop"
	NodeTypeValidator  NodeType = "validator"
	NodeTypeDelay      NodeType = "delay"
	NodeTypeChunker    NodeType = "chunker"
	NodeTypeMetaAgent  NodeType = "meta_agent"
)

// Position is presentational only; the engine ignores it but round-trips it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one vertex of a workflow definition.
type Node struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Position Position `json:"position"`
	Data     Data     `json:"data"`
}

// Edge is one directed edge of a workflow definition. Label is empty or one
// of: "true", "false", "pass", "fail", a switch case value, or "default".
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// Definition is an immutable workflow graph.
type Definition struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NodeByID returns the node with the given id.
func (d *Definition) NodeByID(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Validate checks that every edge references known nodes and that node ids
// are unique. All problems are reported at once.
func (d *Definition) Validate() error {
	var errs coreerrors.ErrorList

	seen := make(map[string]struct{}, len(d.Nodes))
	for _, n := range d.Nodes {
		if n.ID == "" {
			errs.Add(fmt.Errorf("node with empty id"))
			continue
		}
		if _, dup := seen[n.ID]; dup {
			errs.Add(fmt.Errorf("duplicate node id: %s", n.ID))
		}
		seen[n.ID] = struct{}{}
	}
	for _, e := range d.Edges {
		if _, ok := seen[e.Source]; !ok {
			errs.Add(fmt.Errorf("edge %s references unknown source: %s", e.ID, e.Source))
		}
		if _, ok := seen[e.Target]; !ok {
			errs.Add(fmt.Errorf("edge %s references unknown target: %s", e.ID, e.Target))
		}
	}

	if errs.HasErrors() {
		return &errs
	}
	return nil
}
