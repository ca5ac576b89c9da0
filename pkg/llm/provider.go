package llm

import (
	"context"
)

// Message is one entry in an LLM conversation.
type Message struct {
	Role       string                 `json:"role"` // system, user, assistant, tool
	Content    string                 `json:"content"`
	ToolCallID string                 `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall             `json:"tool_calls,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// ToolCall is a tool invocation requested by the model. Arguments are parsed
// from the provider's JSON string exactly once, at the adapter boundary.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolSchema declares one tool to the model.
type ToolSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Request contains the parameters for one chat call.
type Request struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Tools        []ToolSchema
	Temperature  float64
	MaxTokens    int
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the model's reply, already normalized: either final text or a
// set of tool requests.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *TokenUsage
}

// IsToolRequest reports whether the model asked for tool executions.
func (r *Response) IsToolRequest() bool {
	return len(r.ToolCalls) > 0
}

// IsEmpty reports whether the response carries neither text nor tool calls.
// Empty responses are treated as malformed by callers.
func (r *Response) IsEmpty() bool {
	return r.Content == "" && len(r.ToolCalls) == 0
}

// Provider is the opaque chat capability. Vendor-specific request/response
// shaping lives entirely in the adapters.
type Provider interface {
	Chat(ctx context.Context, request Request) (*Response, error)
	Name() string
}
