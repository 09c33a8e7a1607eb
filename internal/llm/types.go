// Package llm defines the provider-agnostic chat interface used by the
// engine's agent invoker, plus a registry of provider implementations.
package llm

import "strings"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ParseRole maps loosely-spelled role names onto canonical roles. Unknown
// names pass through unchanged.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "system", "sys":
		return RoleSystem
	case "user", "human":
		return RoleUser
	case "assistant", "ai", "bot":
		return RoleAssistant
	case "tool", "function":
		return RoleTool
	default:
		return Role(s)
	}
}

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest describes one model invocation.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
	Stop        []string
}

// Usage reports token accounting for a completed call. Values are
// best-effort; providers that do not report usage leave them zero.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is the complete result of a non-streaming call.
type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// StreamEvent is one element of a streaming response. Delta carries a token
// chunk; Done marks the end of the stream; Error reports a mid-stream
// failure (the channel is closed right after).
type StreamEvent struct {
	Delta string
	Done  bool
	Usage *Usage
	Error error
}
