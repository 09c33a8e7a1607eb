// Package broadcast carries workflow status and token-stream events from
// the engine to its subscribers. The Broadcaster interface is the only
// coupling between the two.
package broadcast

import "context"

// Event types emitted by the engine.
const (
	TypeWorkflowStatus = "workflow_status"
	TypeNodeStreaming  = "node_streaming"
)

// Event is one broadcast message in its external JSON form.
type Event struct {
	Type         string            `json:"type"`
	WorkflowID   string            `json:"workflow_id"`
	Status       string            `json:"status,omitempty"`
	NodeStatuses map[string]string `json:"node_statuses,omitempty"`
	Results      map[string]string `json:"results,omitempty"`
	Error        string            `json:"error,omitempty"`
	NodeID       string            `json:"node_id,omitempty"`
	Chunk        string            `json:"chunk,omitempty"`
	Partial      string            `json:"partial,omitempty"`
}

// Broadcaster is a write-only sink for engine events. Implementations must
// tolerate concurrent calls; the engine tolerates their errors.
type Broadcaster interface {
	Broadcast(ctx context.Context, ev Event) error
}

// Func adapts a plain function to the Broadcaster interface.
type Func func(ctx context.Context, ev Event) error

// Broadcast calls the wrapped function.
func (f Func) Broadcast(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Nop is a Broadcaster that discards every event.
var Nop Broadcaster = Func(func(context.Context, Event) error { return nil })
