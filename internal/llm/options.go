package llm

import "time"

// Option is a functional option for configuring an LLM provider.
type Option func(*Config)

// WithAPIKey sets the API key for the provider.
func WithAPIKey(apiKey string) Option {
	return func(c *Config) { c.APIKey = apiKey }
}

// WithBaseURL sets the base URL for the provider.
func WithBaseURL(baseURL string) Option {
	return func(c *Config) { c.BaseURL = baseURL }
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) { c.Timeout = timeout }
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(maxRetries int) Option {
	return func(c *Config) { c.MaxRetries = maxRetries }
}

// NewConfig creates a Config with the given options applied on top of the
// defaults.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// RequestOption is a functional option for configuring a ChatRequest.
type RequestOption func(*ChatRequest)

// WithTemperature sets the sampling temperature for the request.
func WithTemperature(temp float64) RequestOption {
	return func(r *ChatRequest) { r.Temperature = &temp }
}

// WithMaxTokens sets the completion token cap for the request.
func WithMaxTokens(tokens int) RequestOption {
	return func(r *ChatRequest) { r.MaxTokens = &tokens }
}

// WithStop sets the stop sequences for the request.
func WithStop(stop ...string) RequestOption {
	return func(r *ChatRequest) { r.Stop = stop }
}

// NewChatRequest creates a ChatRequest for the given model and messages.
func NewChatRequest(model string, messages []Message, opts ...RequestOption) *ChatRequest {
	req := &ChatRequest{Model: model, Messages: messages}
	for _, opt := range opts {
		opt(req)
	}
	return req
}
