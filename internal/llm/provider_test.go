package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProviderType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected ProviderType
		wantErr  bool
	}{
		{"openai", ProviderOpenAI, false},
		{"anthropic", ProviderAnthropic, false},
		{"local", ProviderLocal, false},
		{"ollama", ProviderLocal, false},
		{"vllm", ProviderLocal, false},
		{"lmstudio", ProviderLocal, false},
		{"unknown", "", true},
		{"", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			result, err := ParseProviderType(tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidProvider)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, result)
			}
		})
	}
}

func TestDefaultAPIKeyEnvVar(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "OPENAI_API_KEY", DefaultAPIKeyEnvVar(ProviderOpenAI))
	assert.Equal(t, "ANTHROPIC_API_KEY", DefaultAPIKeyEnvVar(ProviderAnthropic))
	assert.Empty(t, DefaultAPIKeyEnvVar(ProviderLocal))
}

func TestDefaultBaseURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://api.openai.com/v1", DefaultBaseURL(ProviderOpenAI))
	assert.Equal(t, "https://api.anthropic.com", DefaultBaseURL(ProviderAnthropic))
	assert.Equal(t, "http://localhost:11434/v1", DefaultBaseURL(ProviderLocal))
	assert.Empty(t, DefaultBaseURL(ProviderType("unknown")))
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 2.0, cfg.Multiplier)
}

func TestRouteModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model         string
		wantProvider  ProviderType
		wantModel     string
	}{
		{"claude-sonnet-4-5", ProviderAnthropic, "claude-sonnet-4-5"},
		{"gpt-5", ProviderOpenAI, "gpt-5"},
		{"o3-mini", ProviderOpenAI, "o3-mini"},
		{"lmstudio:qwen-7b", ProviderLocal, "qwen-7b"},
		{"llama3", ProviderLocal, "llama3"},
	}

	for _, tc := range tests {
		t.Run(tc.model, func(t *testing.T) {
			t.Parallel()
			p, m := RouteModel(tc.model)
			assert.Equal(t, tc.wantProvider, p)
			assert.Equal(t, tc.wantModel, m)
		})
	}
}

// mockProvider for testing provider registration.
type mockProvider struct{ name string }

func (m *mockProvider) Chat(context.Context, *ChatRequest) (*ChatResponse, error) {
	return &ChatResponse{Content: "mock"}, nil
}

func (m *mockProvider) ChatStream(context.Context, *ChatRequest) (<-chan StreamEvent, error) {
	ch := make(chan StreamEvent, 1)
	ch <- StreamEvent{Done: true}
	close(ch)
	return ch, nil
}

func (m *mockProvider) Name() string { return m.name }

func TestNewProvider(t *testing.T) {
	orig := registry
	defer func() { registry = orig }()
	registry = make(map[ProviderType]ProviderFactory)

	testType := ProviderType("test")
	RegisterProvider(testType, func(_ Config) (Provider, error) {
		return &mockProvider{name: "test"}, nil
	})

	t.Run("CreatesRegisteredProvider", func(t *testing.T) {
		p, err := NewProvider(testType, Config{})
		require.NoError(t, err)
		assert.Equal(t, "test", p.Name())
	})

	t.Run("ErrorsOnUnregistered", func(t *testing.T) {
		_, err := NewProvider(ProviderType("missing"), Config{})
		assert.ErrorIs(t, err, ErrInvalidProvider)
	})
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected Role
	}{
		{"system", RoleSystem},
		{"human", RoleUser},
		{"ai", RoleAssistant},
		{"function", RoleTool},
		{"custom", Role("custom")},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, ParseRole(tc.input))
		})
	}
}
