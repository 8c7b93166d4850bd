// Package taskstore defines the port interface for the coarse-grained
// task store.
package taskstore

import (
	"context"

	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/task"
)

// Store is the port interface for coarse task records. The coarse status
// is what a recovery sweep trusts when deciding whether to intervene.
type Store interface {
	// Create persists a new task.
	Create(ctx context.Context, t *task.Task) error

	// Get returns the task with the given id, or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*task.Task, error)

	// ListByStatus returns all tasks with the given coarse status.
	ListByStatus(ctx context.Context, status task.Status) ([]task.Task, error)

	// UpdateStatus sets the coarse status of the given task.
	UpdateStatus(ctx context.Context, id string, status task.Status) error
}
