// Package entry defines the ContextEntry domain entity, the atomic unit
// of a task's append-only history.
package entry

import "time"

// ActorType identifies who produced an entry.
type ActorType string

const (
	ActorAgent  ActorType = "agent"
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

// Actor describes the producer of an entry.
type Actor struct {
	Type    ActorType `json:"type"`
	ID      string    `json:"id"`
	Version string    `json:"version,omitempty"`
}

// TriggerType identifies what caused an entry to be produced.
type TriggerType string

const (
	TriggerOrchestratorRequest TriggerType = "orchestrator_request"
	TriggerUserRequest         TriggerType = "user_request"
	TriggerSystemEvent         TriggerType = "system_event"
)

// Trigger records the cause of an entry.
type Trigger struct {
	Type    TriggerType `json:"type"`
	Source  string      `json:"source,omitempty"`
	Details string      `json:"details,omitempty"`
}

// Operation tags that signal a lifecycle transition when replayed.
// Entries may carry any free-form operation; only these affect the
// derived status.
const (
	OpTaskCreated        = "task_created"
	OpExecutionStarted   = "execution_started"
	OpExecutionPaused    = "execution_paused"
	OpExecutionCompleted = "execution_completed"
	OpExecutionFailed    = "execution_failed"
	OpTaskRecovered      = "task_recovered"
	OpUserInputReceived  = "user_input_received"
)

// DefaultReasoning is the sentinel stored when a producer supplies no
// reasoning text.
const DefaultReasoning = "no reasoning provided"

// ContextEntry is one immutable, sequence-numbered record of something an
// actor did to a task. Sequence numbers per task are gapless and strictly
// increasing, starting at 1. Once appended an entry is never mutated.
type ContextEntry struct {
	ID             string         `json:"id"`
	TaskID         string         `json:"task_id"`
	SequenceNumber int            `json:"sequence_number"`
	Timestamp      time.Time      `json:"timestamp"`
	Actor          Actor          `json:"actor"`
	Operation      string         `json:"operation"`
	Data           map[string]any `json:"data,omitempty"`
	Reasoning      string         `json:"reasoning"`
	Confidence     float64        `json:"confidence"`
	Trigger        Trigger        `json:"trigger"`
}

// Normalize enforces the persisted-form invariants: confidence clamped to
// [0,1] and a non-empty reasoning string. The log adapter calls this once
// before writing; stored entries always satisfy both.
func (e *ContextEntry) Normalize() {
	e.Confidence = ClampConfidence(e.Confidence)
	if e.Reasoning == "" {
		e.Reasoning = DefaultReasoning
	}
}

// ClampConfidence clamps c into [0.0, 1.0].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
