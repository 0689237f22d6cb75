// Package llms abstracts text generation with function calling.
package llms

import "context"

// Message roles follow the common chat convention. Providers map them onto
// their own wire roles as needed.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// Name identifies the tool for RoleTool messages.
	Name string `json:"name,omitempty"`

	// ToolCalls carries the calls an assistant message requested.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// Provider generates responses, optionally requesting tool calls.
type Provider interface {
	// Generate returns the response text, any requested tool calls, and the
	// total token count.
	Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (string, []ToolCall, int, error)

	GetModelName() string
	Close() error
}
