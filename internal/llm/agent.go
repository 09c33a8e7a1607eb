package llm

import (
	"context"
	"strings"
)

// RouteModel determines the provider for a model ID and strips any routing
// prefix. Models starting with "claude" go to Anthropic, "gpt"/"o1"/"o3" to
// OpenAI, "lmstudio:" to the local OpenAI-compatible endpoint, and
// everything else to the local provider (Ollama naming).
func RouteModel(model string) (ProviderType, string) {
	if actual, ok := strings.CutPrefix(model, "lmstudio:"); ok {
		return ProviderLocal, actual
	}
	if strings.HasPrefix(model, "claude") {
		return ProviderAnthropic, model
	}
	for _, p := range []string{"gpt", "o1", "o3"} {
		if strings.HasPrefix(model, p) {
			return ProviderOpenAI, model
		}
	}
	return ProviderLocal, model
}

// ChatAgent binds a provider to a model, a system prompt, and sampling
// parameters. It is the unit of work the engine's agent invoker consumes.
type ChatAgent struct {
	provider     Provider
	model        string
	systemPrompt string
	temperature  float64
	maxTokens    int
}

// Factory creates chat agents by routing model IDs to registered providers.
type Factory struct {
	// LMStudioBaseURL overrides the local endpoint for "lmstudio:" models.
	LMStudioBaseURL string
	// Options are applied to every provider config after env defaults.
	Options []Option
}

// NewAgent builds a ChatAgent for the given model. API keys are read from
// the provider's conventional environment variable unless overridden via
// Options.
func (f *Factory) NewAgent(model, systemPrompt string, temperature float64, maxTokens int) (*ChatAgent, error) {
	providerType, actualModel := RouteModel(model)

	cfg := DefaultConfig()
	cfg.APIKey = GetAPIKeyFromEnv(providerType)
	cfg.BaseURL = DefaultBaseURL(providerType)
	if strings.HasPrefix(model, "lmstudio:") && f.LMStudioBaseURL != "" {
		cfg.BaseURL = f.LMStudioBaseURL
	}
	for _, opt := range f.Options {
		opt(&cfg)
	}

	provider, err := NewProvider(providerType, cfg)
	if err != nil {
		return nil, err
	}

	return &ChatAgent{
		provider:     provider,
		model:        actualModel,
		systemPrompt: systemPrompt,
		temperature:  temperature,
		maxTokens:    maxTokens,
	}, nil
}

// Provider returns the provider name for usage accounting.
func (a *ChatAgent) Provider() string {
	return a.provider.Name()
}

// Chat sends messages and returns the full response content.
func (a *ChatAgent) Chat(ctx context.Context, messages []Message) (string, error) {
	resp, err := a.provider.Chat(ctx, a.request(messages))
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// StreamChat sends messages and returns a channel of token chunks.
func (a *ChatAgent) StreamChat(ctx context.Context, messages []Message) (<-chan StreamEvent, error) {
	return a.provider.ChatStream(ctx, a.request(messages))
}

func (a *ChatAgent) request(messages []Message) *ChatRequest {
	all := make([]Message, 0, len(messages)+1)
	if a.systemPrompt != "" {
		all = append(all, Message{Role: RoleSystem, Content: a.systemPrompt})
	}
	all = append(all, messages...)
	return NewChatRequest(a.model, all,
		WithTemperature(a.temperature),
		WithMaxTokens(a.maxTokens),
	)
}
