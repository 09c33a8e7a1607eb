package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// ProviderType identifies an LLM provider implementation.
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderLocal     ProviderType = "local"
)

// ParseProviderType maps a provider name (including common aliases) onto a
// ProviderType.
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai":
		return ProviderOpenAI, nil
	case "anthropic":
		return ProviderAnthropic, nil
	case "local", "ollama", "vllm", "llama", "lmstudio":
		return ProviderLocal, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidProvider, s)
	}
}

// Provider is the interface every LLM backend implements.
type Provider interface {
	// Name returns the provider name surfaced in usage events.
	Name() string
	// Chat sends messages and returns the complete response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	// ChatStream sends messages and streams the response. The returned
	// channel is closed when the stream ends.
	ChatStream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error)
}

// Config carries provider construction parameters.
type Config struct {
	APIKey          string
	BaseURL         string
	Timeout         time.Duration
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultConfig returns the baseline provider configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:         5 * time.Minute,
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}
}

// ProviderFactory constructs a Provider from a Config.
type ProviderFactory func(cfg Config) (Provider, error)

var registry = make(map[ProviderType]ProviderFactory)

// RegisterProvider registers a provider factory. Called from provider
// package init functions.
func RegisterProvider(t ProviderType, f ProviderFactory) {
	registry[t] = f
}

// NewProvider instantiates a registered provider.
func NewProvider(t ProviderType, cfg Config) (Provider, error) {
	f, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, t)
	}
	return f(cfg)
}

// DefaultAPIKeyEnvVar returns the environment variable conventionally
// holding the API key for a provider.
func DefaultAPIKeyEnvVar(t ProviderType) string {
	switch t {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// DefaultBaseURL returns the default endpoint for a provider.
func DefaultBaseURL(t ProviderType) string {
	switch t {
	case ProviderOpenAI:
		return "https://api.openai.com/v1"
	case ProviderAnthropic:
		return "https://api.anthropic.com"
	case ProviderLocal:
		return "http://localhost:11434/v1"
	default:
		return ""
	}
}

// GetAPIKeyFromEnv reads the provider's API key from the environment.
func GetAPIKeyFromEnv(t ProviderType) string {
	name := DefaultAPIKeyEnvVar(t)
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
