package messagequeue

// ExecutionPayload is published on the tasks.execution.* subjects when an
// agent execution transitions lifecycle state.
type ExecutionPayload struct {
	TaskID       string   `json:"task_id"`
	AgentID      string   `json:"agent_id"`
	Operation    string   `json:"operation"`
	Status       string   `json:"status"`
	NeededFields []string `json:"needed_fields,omitempty"`
	ErrorKind    string   `json:"error_kind,omitempty"`
}

// RecoveredPayload is published on tasks.recovered after a sweep re-queues
// an orphaned task.
type RecoveredPayload struct {
	TaskID    string `json:"task_id"`
	LastPhase string `json:"last_phase,omitempty"`
	Reason    string `json:"reason"`
}
