package engine

import "github.com/gennaro-ai/gennaro/internal/llm"

// llmFactory adapts llm.Factory to the AgentFactory interface.
type llmFactory struct {
	factory *llm.Factory
}

// NewLLMFactory wraps an llm.Factory for use as the engine's agent source.
func NewLLMFactory(f *llm.Factory) AgentFactory {
	return &llmFactory{factory: f}
}

func (l *llmFactory) NewAgent(model, systemPrompt string, temperature float64, maxTokens int) (Agent, error) {
	return l.factory.NewAgent(model, systemPrompt, temperature, maxTokens)
}
