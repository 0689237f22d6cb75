// Package agent drives an iteration-capped function-calling loop over a
// tenant's discovered tools.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ocakhasan/askdata/pkg/llms"
	"github.com/ocakhasan/askdata/pkg/tools"
)

const (
	// MaxIterations bounds the reasoning loop.
	MaxIterations = 5

	// modelObservationLimit caps tool output fed back to the model.
	modelObservationLimit = 2000

	// traceObservationLimit caps tool output kept in the aggregated trace.
	traceObservationLimit = 200
)

// Agent is a reasoning handle for one tenant. The tool set is fixed at
// creation; discovery is never re-run on an existing handle.
type Agent struct {
	tenantID      string
	provider      llms.Provider
	tools         []tools.Tool
	byName        map[string]tools.Tool
	defs          []llms.ToolDefinition
	maxIterations int
}

// New builds an agent over the given tool handles.
func New(tenantID string, provider llms.Provider, handles []tools.Tool) *Agent {
	a := &Agent{
		tenantID:      tenantID,
		provider:      provider,
		tools:         handles,
		byName:        make(map[string]tools.Tool, len(handles)),
		defs:          make([]llms.ToolDefinition, 0, len(handles)),
		maxIterations: MaxIterations,
	}

	for _, handle := range handles {
		a.byName[handle.GetName()] = handle
		a.defs = append(a.defs, toolDefinition(handle.GetInfo()))
	}
	return a
}

// TenantID returns the tenant this agent serves.
func (a *Agent) TenantID() string {
	return a.tenantID
}

// Tools returns the fixed tool set discovered at creation time.
func (a *Agent) Tools() []tools.Tool {
	return a.tools
}

// Run executes the reasoning loop for one prompt. Thought and observation
// events flow to the observer as they happen; a successful run ends with a
// final event. Errors carry no terminal event, the caller reports them.
func (a *Agent) Run(ctx context.Context, prompt string, observer Observer) (*Result, error) {
	emit := func(e Event) {
		if observer != nil {
			observer(e)
		}
	}

	messages := []llms.Message{{Role: llms.RoleUser, Content: prompt}}
	var thoughts []Thought

	for iteration := 0; iteration < a.maxIterations; iteration++ {
		text, calls, tokens, err := a.provider.Generate(ctx, messages, a.defs)
		if err != nil {
			return nil, fmt.Errorf("llm call failed: %w", err)
		}

		if len(calls) == 0 {
			slog.Debug("reasoning complete",
				"tenant", a.tenantID,
				"iterations", iteration+1,
				"tokens", tokens)
			emit(Event{Type: EventFinal, Output: text})
			return &Result{Response: text, Thoughts: thoughts}, nil
		}

		messages = append(messages, llms.Message{
			Role:      llms.RoleAssistant,
			Content:   text,
			ToolCalls: calls,
		})

		for _, call := range calls {
			emit(Event{
				Type:      EventThought,
				Tool:      call.Name,
				ToolInput: call.Arguments,
				Reasoning: text,
			})

			observation := a.execute(ctx, call)
			emit(Event{
				Type:   EventObservation,
				Tool:   call.Name,
				Output: truncate(observation, modelObservationLimit),
			})

			messages = append(messages, llms.Message{
				Role:    llms.RoleTool,
				Name:    call.Name,
				Content: truncate(observation, modelObservationLimit),
			})
			thoughts = append(thoughts, Thought{
				Tool:        call.Name,
				ToolInput:   call.Arguments,
				Observation: truncate(observation, traceObservationLimit),
			})
		}
	}

	return nil, fmt.Errorf("agent stopped after %d iterations without a final answer", a.maxIterations)
}

// execute runs one tool call. A call the model invented for a tool that was
// never advertised becomes a failed observation, not an aborted run.
func (a *Agent) execute(ctx context.Context, call llms.ToolCall) string {
	handle, ok := a.byName[call.Name]
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q", call.Name)
	}

	result := handle.Execute(ctx, call.Arguments)
	if !result.Success {
		return fmt.Sprintf("Error: %s", result.Error)
	}
	return result.Content
}

func toolDefinition(info tools.ToolInfo) llms.ToolDefinition {
	properties := make(map[string]interface{}, len(info.Parameters))
	var required []string
	for _, param := range info.Parameters {
		properties[param.Name] = map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Required {
			required = append(required, param.Name)
		}
	}

	var schema map[string]interface{}
	if len(properties) > 0 {
		schema = map[string]interface{}{
			"type":       "object",
			"properties": properties,
		}
		if len(required) > 0 {
			schema["required"] = required
		}
	}

	return llms.ToolDefinition{
		Name:        info.Name,
		Description: info.Description,
		Parameters:  schema,
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
