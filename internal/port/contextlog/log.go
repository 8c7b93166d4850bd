// Package contextlog defines the port interface for the append-only
// per-task context log.
package contextlog

import (
	"context"

	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/entry"
)

// Log is the port interface for appending and reading context entries.
// The log for a task is the sole source of truth for that task's history.
type Log interface {
	// Append persists a new entry, assigning the next sequence number for
	// the entry's task atomically with respect to other appends for the
	// same task. The write is durable when Append returns. Appends for
	// different tasks proceed independently.
	Append(ctx context.Context, e *entry.ContextEntry) error

	// Read returns the task's entries in sequence order, starting at
	// fromSequence (values <= 1 mean the beginning). An unknown task
	// yields an empty slice, not an error.
	Read(ctx context.Context, taskID string, fromSequence int) ([]entry.ContextEntry, error)
}
