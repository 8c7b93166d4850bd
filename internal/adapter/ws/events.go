package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventEntryAppended = "task.entry_appended"
	EventTaskStatus    = "task.status"
	EventTaskRecovered = "task.recovered"
)

// EntryAppendedEvent is broadcast after a context entry is durably written.
type EntryAppendedEvent struct {
	TaskID         string `json:"task_id"`
	SequenceNumber int    `json:"sequence_number"`
	Operation      string `json:"operation"`
	ActorType      string `json:"actor_type"`
	ActorID        string `json:"actor_id"`
}

// TaskStatusEvent is broadcast when a task's coarse status changes.
type TaskStatusEvent struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// TaskRecoveredEvent is broadcast when a sweep re-queues an orphaned task.
type TaskRecoveredEvent struct {
	TaskID    string `json:"task_id"`
	LastPhase string `json:"last_phase,omitempty"`
}

// BroadcastEvent marshals a typed event and broadcasts it to all clients.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
