// Package local provides an LLM provider for OpenAI-compatible local
// runtimes (Ollama, LM Studio, vLLM). No API key is required.
package local

import (
	"context"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/gennaro-ai/gennaro/internal/llm"
	"github.com/gennaro-ai/gennaro/internal/llm/providers/openai"
)

const providerName = "local"

func init() {
	llm.RegisterProvider(llm.ProviderLocal, New)
}

var _ llm.Provider = (*Provider)(nil)

// Provider implements llm.Provider for local OpenAI-compatible endpoints.
type Provider struct {
	client *goopenai.Client
}

// New creates a new local provider.
func New(cfg llm.Config) (llm.Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = llm.DefaultBaseURL(llm.ProviderLocal)
	}
	if cfg.APIKey == "" {
		// go-openai requires a non-empty key; local runtimes ignore it.
		cfg.APIKey = "local"
	}
	return &Provider{client: openai.NewClient(cfg)}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// Chat sends messages and returns the complete response.
func (p *Provider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return openai.Chat(ctx, p.client, providerName, req)
}

// ChatStream sends messages and streams the response.
func (p *Provider) ChatStream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	return openai.ChatStream(ctx, p.client, providerName, req)
}
