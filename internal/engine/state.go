package engine

import (
	"sync"
	"time"

	"github.com/gennaro-ai/gennaro/internal/stringutil"
)

// Pipeline-level statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Node-level statuses. Progress strings like "loop 2/4" are also valid
// values for display purposes.
const (
	NodeWaiting = "waiting"
	NodeRunning = "running"
	NodeDone    = "done"
	NodeError   = "error"
)

// runState is the mutable per-run state, guarded by a single mutex so
// same-level parallel nodes can update it safely.
type runState struct {
	mu sync.Mutex

	results        map[string]string
	displayResults map[string]string
	nodeStatuses   map[string]string
	blockedEdges   map[string]bool
	skipNodes      map[string]bool
	variables      map[string]string
	lastStreamEmit map[string]time.Time

	status string
	errMsg string
}

func newRunState(nodeIDs []string) *runState {
	s := &runState{
		results:        make(map[string]string),
		displayResults: make(map[string]string),
		nodeStatuses:   make(map[string]string, len(nodeIDs)),
		blockedEdges:   make(map[string]bool),
		skipNodes:      make(map[string]bool),
		variables:      make(map[string]string),
		lastStreamEmit: make(map[string]time.Time),
		status:         StatusPending,
	}
	for _, id := range nodeIDs {
		s.nodeStatuses[id] = NodeWaiting
	}
	return s
}

func (s *runState) setStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *runState) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusError
	s.errMsg = msg
}

func (s *runState) setNodeStatus(nodeID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeStatuses[nodeID] = status
}

// setResult stores a completed node's output and marks it done.
func (s *runState) setResult(nodeID, result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[nodeID] = result
	s.displayResults[nodeID] = result
	s.nodeStatuses[nodeID] = NodeDone
}

// markSkipped records a branch-skipped node: empty result for input
// collection, "[skipped]" for display.
func (s *runState) markSkipped(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[nodeID] = ""
	s.displayResults[nodeID] = "[skipped]"
	s.nodeStatuses[nodeID] = NodeDone
}

func (s *runState) result(nodeID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results[nodeID]
}

func (s *runState) resultsCopy() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.results))
	for k, v := range s.results {
		out[k] = v
	}
	return out
}

func (s *runState) blockEdge(edgeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockedEdges[edgeID] = true
}

func (s *runState) isBlocked(edgeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockedEdges[edgeID]
}

func (s *runState) addSkipNodes(ids map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range ids {
		s.skipNodes[id] = true
	}
}

func (s *runState) isSkipped(nodeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipNodes[nodeID]
}

func (s *runState) setVariable(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variables[name] = value
}

// substituteVariables replaces {var:name} tokens with stored values,
// leaving unknown references untouched.
func (s *runState) substituteVariables(text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stringutil.SubstituteVariables(text, s.variables)
}

// allowStreamEmit reports whether a token broadcast for the node may be
// sent now, enforcing the per-node throttle interval. It records the
// emission time when allowed.
func (s *runState) allowStreamEmit(nodeID string, interval time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if now.Sub(s.lastStreamEmit[nodeID]) < interval {
		return false
	}
	s.lastStreamEmit[nodeID] = now
	return true
}

// resetStreamThrottle zeroes the node's throttle so the next emit always
// goes out.
func (s *runState) resetStreamThrottle(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastStreamEmit[nodeID] = time.Time{}
}

// snapshot captures the broadcastable view of the run.
func (s *runState) snapshot(truncateAt int) (status string, errMsg string, nodeStatuses map[string]string, results map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodeStatuses = make(map[string]string, len(s.nodeStatuses))
	for k, v := range s.nodeStatuses {
		nodeStatuses[k] = v
	}
	results = make(map[string]string, len(s.displayResults))
	for k, v := range s.displayResults {
		if truncateAt > 0 && len(v) > truncateAt {
			v = v[:truncateAt]
		}
		results[k] = v
	}
	return s.status, s.errMsg, nodeStatuses, results
}
