package engine

import (
	"context"
	"fmt"

	"github.com/gennaro-ai/gennaro/internal/tool"
	"github.com/gennaro-ai/gennaro/internal/workflow"
)

// runToolNode resolves the node's tool and invokes it with the built
// configuration. An unknown tool name is a deterministic result string,
// not a failure.
func (e *Engine) runToolNode(ctx context.Context, node *workflow.Node, input string) (string, error) {
	inv := tool.BuildInvocation(node.Data, input)
	t := e.tools.Get(inv.Name)
	if t == nil {
		return fmt.Sprintf("[Tool '%s' not found]", inv.Name), nil
	}
	return t.Execute(ctx, inv.Input, inv.Config)
}

// runDatabaseInput executes the query configured on a database-typed
// input node through the database tool.
func (e *Engine) runDatabaseInput(ctx context.Context, node *workflow.Node) string {
	query := node.Data.String("query", "")
	if query == "" {
		return "[Database Input: no query configured]"
	}
	t := e.tools.Get("database_tool")
	if t == nil {
		return "[Database Input: database_tool not available]"
	}

	config := map[string]any{"query": query}
	if conn := node.Data.String("connectionString", ""); conn != "" {
		config["connection_string"] = conn
	}
	if dbType := node.Data.String("dbType", "sqlite"); dbType != "" {
		config["db_type"] = dbType
	}

	result, err := t.Execute(ctx, query, config)
	if err != nil {
		return fmt.Sprintf("[Database Input error: %v]", err)
	}
	return result
}
