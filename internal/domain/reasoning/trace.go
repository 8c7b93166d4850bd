package reasoning

// ToolInvocation records one tool call made during a run.
type ToolInvocation struct {
	Name      string `json:"name"`
	Iteration int    `json:"iteration"`
}

// Trace summarizes what a reasoning run did. It is ephemeral during the
// run and persisted as part of the final context entry's data, so replay
// of the log reconstructs how the result was reached.
type Trace struct {
	Iterations int              `json:"iterations"`
	ToolCalls  []ToolInvocation `json:"tool_calls,omitempty"`
	Knowledge  map[string]any   `json:"knowledge,omitempty"`
	DurationMS int64            `json:"duration_ms"`
}
