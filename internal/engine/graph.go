package engine

import (
	"errors"
	"fmt"

	"github.com/gennaro-ai/gennaro/internal/workflow"
)

// ErrMalformedGraph is returned when a definition cannot be analyzed:
// an edge references an unknown node, or a cycle survives back-edge
// removal.
var ErrMalformedGraph = errors.New("malformed graph")

// Graph is the analyzed form of a workflow definition: back-edges
// identified and removed, DAG adjacency maps built.
type Graph struct {
	def       *workflow.Definition
	nodes     map[string]*workflow.Node
	nodeOrder []string

	backEdges []workflow.Edge
	dagEdges  []workflow.Edge
	incoming  map[string][]workflow.Edge
	outgoing  map[string][]workflow.Edge
}

// Analyze validates a definition and splits its edges into DAG edges and
// back-edges. Traversal order is deterministic: nodes in definition
// order, successors in edge-declaration order.
func Analyze(def *workflow.Definition) (*Graph, error) {
	g := &Graph{
		def:      def,
		nodes:    make(map[string]*workflow.Node, len(def.Nodes)),
		incoming: make(map[string][]workflow.Edge),
		outgoing: make(map[string][]workflow.Edge),
	}
	for i := range def.Nodes {
		n := &def.Nodes[i]
		g.nodes[n.ID] = n
		g.nodeOrder = append(g.nodeOrder, n.ID)
	}
	for _, e := range def.Edges {
		if _, ok := g.nodes[e.Source]; !ok {
			return nil, fmt.Errorf("%w: edge %s references unknown source %s", ErrMalformedGraph, e.ID, e.Source)
		}
		if _, ok := g.nodes[e.Target]; !ok {
			return nil, fmt.Errorf("%w: edge %s references unknown target %s", ErrMalformedGraph, e.ID, e.Target)
		}
	}

	backEdgeIDs := detectBackEdges(def)
	for _, e := range def.Edges {
		if backEdgeIDs[e.ID] {
			g.backEdges = append(g.backEdges, e)
			continue
		}
		g.dagEdges = append(g.dagEdges, e)
		g.incoming[e.Target] = append(g.incoming[e.Target], e)
		g.outgoing[e.Source] = append(g.outgoing[e.Source], e)
	}

	// Kahn over the DAG doubles as the residual-cycle check.
	if _, err := g.levels(); err != nil {
		return nil, err
	}
	return g, nil
}

// detectBackEdges finds edges that close cycles using DFS 3-coloring.
// An edge to a gray (in-progress) node is a back-edge.
func detectBackEdges(def *workflow.Definition) map[string]bool {
	type succ struct {
		target string
		edgeID string
	}
	adjacency := make(map[string][]succ, len(def.Nodes))
	for _, n := range def.Nodes {
		adjacency[n.ID] = nil
	}
	for _, e := range def.Edges {
		adjacency[e.Source] = append(adjacency[e.Source], succ{target: e.Target, edgeID: e.ID})
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(def.Nodes))
	backEdges := make(map[string]bool)

	var dfs func(u string)
	dfs = func(u string) {
		color[u] = gray
		for _, s := range adjacency[u] {
			switch color[s.target] {
			case gray:
				backEdges[s.edgeID] = true
			case white:
				dfs(s.target)
			}
		}
		color[u] = black
	}
	for _, n := range def.Nodes {
		if color[n.ID] == white {
			dfs(n.ID)
		}
	}
	return backEdges
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *workflow.Node {
	return g.nodes[id]
}

// Incoming returns the DAG edges pointing at the node.
func (g *Graph) Incoming(id string) []workflow.Edge {
	return g.incoming[id]
}

// Outgoing returns the DAG edges leaving the node.
func (g *Graph) Outgoing(id string) []workflow.Edge {
	return g.outgoing[id]
}

// BackEdges returns the detected back-edges in declaration order.
func (g *Graph) BackEdges() []workflow.Edge {
	return g.backEdges
}

// TopologicalLevels returns the Kahn generations of the DAG: level 0 is
// every zero-in-degree node, level k holds nodes whose predecessors all
// lie in earlier levels.
func (g *Graph) TopologicalLevels() [][]string {
	levels, err := g.levels()
	if err != nil {
		// Analyze already rejected residual cycles.
		return nil
	}
	return levels
}

func (g *Graph) levels() ([][]string, error) {
	inDegree := make(map[string]int, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		inDegree[id] = 0
	}
	for _, e := range g.dagEdges {
		inDegree[e.Target]++
	}

	var levels [][]string
	placed := 0
	current := make([]string, 0)
	for _, id := range g.nodeOrder {
		if inDegree[id] == 0 {
			current = append(current, id)
		}
	}
	for len(current) > 0 {
		levels = append(levels, current)
		placed += len(current)

		nextSet := make(map[string]bool)
		for _, id := range current {
			for _, e := range g.outgoing[id] {
				inDegree[e.Target]--
				if inDegree[e.Target] == 0 {
					nextSet[e.Target] = true
				}
			}
		}
		next := make([]string, 0, len(nextSet))
		for _, id := range g.nodeOrder {
			if nextSet[id] {
				next = append(next, id)
			}
		}
		current = next
	}
	if placed != len(g.nodeOrder) {
		return nil, fmt.Errorf("%w: cycle remains after back-edge removal", ErrMalformedGraph)
	}
	return levels, nil
}

// LoopBody identifies the nodes forming a graph-level loop body: those
// reachable forward from the loop node and backward from the back-edge
// source, excluding the loop node itself.
func (g *Graph) LoopBody(loopNodeID, backEdgeSource string) map[string]bool {
	forward := make(map[string]bool)
	var stack []string
	for _, e := range g.outgoing[loopNodeID] {
		stack = append(stack, e.Target)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if forward[id] {
			continue
		}
		forward[id] = true
		for _, e := range g.outgoing[id] {
			if !forward[e.Target] {
				stack = append(stack, e.Target)
			}
		}
	}

	backward := make(map[string]bool)
	stack = []string{backEdgeSource}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if backward[id] || id == loopNodeID {
			continue
		}
		backward[id] = true
		for _, e := range g.incoming[id] {
			if !backward[e.Source] && e.Source != loopNodeID {
				stack = append(stack, e.Source)
			}
		}
	}

	body := make(map[string]bool)
	for id := range forward {
		if backward[id] {
			body[id] = true
		}
	}
	return body
}
