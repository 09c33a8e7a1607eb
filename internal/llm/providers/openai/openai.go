// Package openai provides an LLM provider backed by the OpenAI chat
// completions API via the go-openai client.
package openai

import (
	"context"
	"errors"
	"io"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/gennaro-ai/gennaro/internal/llm"
)

const providerName = "openai"

func init() {
	llm.RegisterProvider(llm.ProviderOpenAI, New)
}

var _ llm.Provider = (*Provider)(nil)

// Provider implements llm.Provider for OpenAI models.
type Provider struct {
	client *goopenai.Client
}

// New creates a new OpenAI provider.
func New(cfg llm.Config) (llm.Provider, error) {
	if cfg.APIKey == "" {
		return nil, llm.ErrNoAPIKey
	}
	return &Provider{client: NewClient(cfg)}, nil
}

// NewClient builds a go-openai client from a provider Config. Shared with
// the local provider, which speaks the same protocol.
func NewClient(cfg llm.Config) *goopenai.Client {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return goopenai.NewClientWithConfig(clientCfg)
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// Chat sends messages and returns the complete response.
func (p *Provider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return Chat(ctx, p.client, providerName, req)
}

// ChatStream sends messages and streams the response.
func (p *Provider) ChatStream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	return ChatStream(ctx, p.client, providerName, req)
}

// Chat performs a non-streaming chat completion.
func Chat(ctx context.Context, client *goopenai.Client, name string, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	resp, err := client.CreateChatCompletion(ctx, buildRequest(req, false))
	if err != nil {
		return nil, llm.WrapError(name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.WrapError(name, errors.New("empty response"))
	}
	return &llm.ChatResponse{
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// ChatStream performs a streaming chat completion.
func ChatStream(ctx context.Context, client *goopenai.Client, name string, req *llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	stream, err := client.CreateChatCompletionStream(ctx, buildRequest(req, true))
	if err != nil {
		return nil, llm.WrapError(name, err)
	}

	events := make(chan llm.StreamEvent)
	go func() {
		defer close(events)
		defer func() { _ = stream.Close() }()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				events <- llm.StreamEvent{Done: true}
				return
			}
			if err != nil {
				events <- llm.StreamEvent{Error: llm.WrapError(name, err), Done: true}
				return
			}
			if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
				select {
				case events <- llm.StreamEvent{Delta: resp.Choices[0].Delta.Content}:
				case <-ctx.Done():
					events <- llm.StreamEvent{Error: ctx.Err(), Done: true}
					return
				}
			}
		}
	}()
	return events, nil
}

func buildRequest(req *llm.ChatRequest, stream bool) goopenai.ChatCompletionRequest {
	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	out := goopenai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   stream,
	}
	if req.Temperature != nil {
		out.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}
	if len(req.Stop) > 0 {
		out.Stop = req.Stop
	}
	return out
}
