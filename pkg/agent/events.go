package agent

// EventType identifies a reasoning-loop event.
type EventType string

const (
	// EventThought precedes each tool call with the chosen tool, its input,
	// and the model's free-text reasoning.
	EventThought EventType = "thought"

	// EventObservation carries a completed tool call's output.
	EventObservation EventType = "observation"

	// EventFinal carries the answer. Exactly one terminal event is emitted
	// per run, either final or error.
	EventFinal EventType = "final"

	// EventError reports a failed run.
	EventError EventType = "error"
)

// Event is one reasoning-loop step, delivered to the observer in emission
// order.
type Event struct {
	Type      EventType              `json:"type"`
	Tool      string                 `json:"tool,omitempty"`
	ToolInput map[string]interface{} `json:"tool_input,omitempty"`
	Reasoning string                 `json:"reasoning,omitempty"`
	Output    string                 `json:"output,omitempty"`
}

// Observer receives events as the loop produces them. May be nil.
type Observer func(Event)

// Thought is the aggregated trace form of one tool call, returned with the
// final answer for non-streaming callers.
type Thought struct {
	Tool        string                 `json:"tool"`
	ToolInput   map[string]interface{} `json:"tool_input"`
	Observation string                 `json:"observation"`
}

// Result is the outcome of a completed run.
type Result struct {
	Response string    `json:"response"`
	Thoughts []Thought `json:"thoughts"`
}
