// Package task defines the coarse-grained Task record and the status
// vocabulary shared with callers.
package task

import "time"

// Status represents the coarse lifecycle state of a task. This is the
// authoritative field a recovery sweep trusts; the fine-grained state
// derived from the context log is used for resumption context only.
type Status string

const (
	StatusCreated        Status = "created"
	StatusInProgress     Status = "in_progress"
	StatusPausedForInput Status = "paused_for_input"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
)

// Valid reports whether s is one of the closed status vocabulary values.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusInProgress, StatusPausedForInput, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Task represents one unit of onboarding work owned by a business.
type Task struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	Type       string    `json:"type"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateRequest holds the fields needed to create a new task.
type CreateRequest struct {
	BusinessID string `json:"business_id"`
	Type       string `json:"type"`
}
