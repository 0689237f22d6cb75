package tools

import (
	"context"
	"time"
)

type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters,omitempty"`
	ServerURL   string          `json:"server_url,omitempty"`
}

type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// ToolResult is the unconditional shape of a tool invocation outcome.
// Transport failures, protocol errors and tool-internal failures all fold
// into Success=false; Execute never returns an error alongside it.
type ToolResult struct {
	Success       bool                   `json:"success"`
	Content       string                 `json:"content,omitempty"`
	Output        map[string]interface{} `json:"output,omitempty"`
	Error         string                 `json:"error,omitempty"`
	ToolName      string                 `json:"tool_name"`
	ExecutionTime time.Duration          `json:"execution_time,omitempty"`
}

type Tool interface {
	GetInfo() ToolInfo

	// Execute invokes the tool with structured arguments.
	Execute(ctx context.Context, args map[string]interface{}) ToolResult

	// ExecuteRaw invokes the tool with free-form argument text; see
	// ParseArguments for the resolution rule. Loops that pass arguments
	// as unstructured text use this entry point; native function calling
	// goes through Execute with structured arguments.
	ExecuteRaw(ctx context.Context, raw string) ToolResult

	GetName() string

	GetDescription() string
}

type ToolSource interface {
	GetName() string

	DiscoverTools(ctx context.Context) error

	ListTools() []ToolInfo

	GetTool(name string) (Tool, bool)
}
