// Package tool provides the registry of node-invocable tools and the
// configuration contract the workflow engine uses to call them.
package tool

import (
	"context"
	"sync"
)

// Tool is an external capability identified by a string name. It accepts
// an input string and a key/value configuration and returns a text result.
// Expected domain failures are returned as result strings prefixed with
// "[<tool>]"; only unexpected failures are returned as errors.
type Tool interface {
	Name() string
	Execute(ctx context.Context, input string, config map[string]any) (string, error)
}

// Registry holds tools keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the tool registered under name, or nil.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry that built-in tools register
// themselves into.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a tool to the default registry.
func Register(t Tool) {
	defaultRegistry.Register(t)
}
