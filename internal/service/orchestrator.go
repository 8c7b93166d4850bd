package service

import (
	"context"
	"fmt"
	"maps"

	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/agent"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/entry"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/task"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/taskstate"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/port/taskstore"
)

// defaultAgent executes recovered tasks when the interrupted entry does
// not name an agent.
var defaultAgent = agent.Agent{ID: "core-executor", Name: "Core Executor", Version: "1"}

// OrchestratorService drives executions that are not triggered directly by
// an orchestrator request: resuming recovered tasks and continuing paused
// tasks once user input arrives.
type OrchestratorService struct {
	executor *ExecutorService
	ctxsvc   *ContextService
	store    taskstore.Store
}

// NewOrchestratorService creates an OrchestratorService.
func NewOrchestratorService(executor *ExecutorService, ctxsvc *ContextService, store taskstore.Store) *OrchestratorService {
	return &OrchestratorService{executor: executor, ctxsvc: ctxsvc, store: store}
}

// Resume re-executes the interrupted operation. The last
// execution_started entry names the operation, its parameters, and the
// agent that was running it; a task with no such entry restarts from its
// own type.
func (s *OrchestratorService) Resume(ctx context.Context, t *task.Task, st taskstate.State, entries []entry.ContextEntry) error {
	req := RunRequest{TaskID: t.ID, Operation: t.Type}
	ag := defaultAgent

	for i := len(entries) - 1; i >= 0; i-- {
		e := &entries[i]
		if e.Operation != entry.OpExecutionStarted {
			continue
		}
		if op, ok := e.Data["operation"].(string); ok && op != "" {
			req.Operation = op
		}
		if params, ok := e.Data["parameters"].(map[string]any); ok {
			req.Parameters = params
		}
		if e.Actor.Type == entry.ActorAgent && e.Actor.ID != "" {
			ag = agent.Agent{ID: e.Actor.ID, Version: e.Actor.Version}
		}
		break
	}

	_, err := s.executor.Execute(ctx, ag, req)
	return err
}

// SubmitUserInput records the fields a user supplied for a paused task and
// re-runs the interrupted operation with them merged into its parameters.
// The input map becomes the entry's data so the fields flow into the
// derived state on replay.
func (s *OrchestratorService) SubmitUserInput(ctx context.Context, taskID, userID string, input map[string]any) error {
	t, err := s.store.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if t.Status != task.StatusPausedForInput {
		return fmt.Errorf("task %s is %s, not awaiting input: %w", taskID, t.Status, domain.ErrConflict)
	}

	e := &entry.ContextEntry{
		TaskID:    taskID,
		Actor:     entry.Actor{Type: entry.ActorUser, ID: userID},
		Operation: entry.OpUserInputReceived,
		Data:      maps.Clone(input),
		Reasoning: "user supplied requested fields",
		Trigger:   entry.Trigger{Type: entry.TriggerUserRequest, Source: "api"},
	}
	if err := s.ctxsvc.Append(ctx, e); err != nil {
		return fmt.Errorf("append user_input_received: %w", err)
	}

	entries, err := s.ctxsvc.History(ctx, taskID, 0)
	if err != nil {
		return fmt.Errorf("read history for resume: %w", err)
	}
	st := taskstate.Compute(entries)
	return s.Resume(ctx, t, st, entries)
}
