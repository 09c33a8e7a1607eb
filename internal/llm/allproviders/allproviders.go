// Package allproviders imports all LLM providers to register them.
// Import this package if you want all providers to be available:
//
//	import _ "github.com/gennaro-ai/gennaro/internal/llm/allproviders"
package allproviders

import (
	_ "github.com/gennaro-ai/gennaro/internal/llm/providers/anthropic"
	_ "github.com/gennaro-ai/gennaro/internal/llm/providers/local"
	_ "github.com/gennaro-ai/gennaro/internal/llm/providers/openai"
)
