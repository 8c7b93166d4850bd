// Package service contains the use cases of the execution core: context
// log access and state computation, the bounded reasoning loop, agent
// execution, and orphaned-task recovery.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/adapter/ws"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/entry"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/task"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/taskstate"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/port/broadcast"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/port/cache"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/port/contextlog"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/port/taskstore"
)

// ContextService exposes the context log and the states derived from it.
// State snapshots are cached by (task, sequence) because replay over an
// immutable prefix always produces the same result.
type ContextService struct {
	log    contextlog.Log
	store  taskstore.Store
	cache  cache.Cache
	hub    broadcast.Broadcaster
	ttl    time.Duration
	logger *slog.Logger
}

// NewContextService creates a ContextService. cache and hub may be nil.
func NewContextService(log contextlog.Log, store taskstore.Store, c cache.Cache, hub broadcast.Broadcaster, ttl time.Duration, logger *slog.Logger) *ContextService {
	return &ContextService{log: log, store: store, cache: c, hub: hub, ttl: ttl, logger: logger}
}

// CreateTask persists a new task and appends its task_created entry.
func (s *ContextService) CreateTask(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	t := &task.Task{
		BusinessID: req.BusinessID,
		Type:       req.Type,
		Status:     task.StatusCreated,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	e := &entry.ContextEntry{
		TaskID:    t.ID,
		Actor:     entry.Actor{Type: entry.ActorSystem, ID: "task-service"},
		Operation: entry.OpTaskCreated,
		Data: map[string]any{
			"business_id": t.BusinessID,
			"task_type":   t.Type,
		},
		Reasoning: "task created",
		Trigger:   entry.Trigger{Type: entry.TriggerOrchestratorRequest, Source: "api"},
	}
	if err := s.Append(ctx, e); err != nil {
		return nil, fmt.Errorf("append task_created: %w", err)
	}
	return t, nil
}

// GetTask returns the coarse task record.
func (s *ContextService) GetTask(ctx context.Context, taskID string) (*task.Task, error) {
	return s.store.Get(ctx, taskID)
}

// Append durably writes an entry and then notifies connected clients.
// The broadcast is a best-effort side channel and never fails the append.
func (s *ContextService) Append(ctx context.Context, e *entry.ContextEntry) error {
	if err := s.log.Append(ctx, e); err != nil {
		return err
	}

	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventEntryAppended, ws.EntryAppendedEvent{
			TaskID:         e.TaskID,
			SequenceNumber: e.SequenceNumber,
			Operation:      e.Operation,
			ActorType:      string(e.Actor.Type),
			ActorID:        e.Actor.ID,
		})
	}
	return nil
}

// History returns the task's entries in sequence order starting at
// fromSequence (values <= 1 mean the beginning).
func (s *ContextService) History(ctx context.Context, taskID string, fromSequence int) ([]entry.ContextEntry, error) {
	return s.log.Read(ctx, taskID, fromSequence)
}

// State replays the full log and returns the task's current state.
func (s *ContextService) State(ctx context.Context, taskID string) (taskstate.State, error) {
	entries, err := s.log.Read(ctx, taskID, 0)
	if err != nil {
		return taskstate.State{}, fmt.Errorf("read log for state: %w", err)
	}
	return s.computeCached(ctx, taskID, entries, len(entries)), nil
}

// StateAt replays only the first n entries, answering "what did the task
// look like as of sequence n" for audits.
func (s *ContextService) StateAt(ctx context.Context, taskID string, n int) (taskstate.State, error) {
	entries, err := s.log.Read(ctx, taskID, 0)
	if err != nil {
		return taskstate.State{}, fmt.Errorf("read log for state: %w", err)
	}
	if n > len(entries) {
		n = len(entries)
	}
	return s.computeCached(ctx, taskID, entries, n), nil
}

// computeCached returns the fold over the first n entries, consulting the
// snapshot cache. Entries are immutable so a hit needs no validation.
func (s *ContextService) computeCached(ctx context.Context, taskID string, entries []entry.ContextEntry, n int) taskstate.State {
	key := fmt.Sprintf("state:%s:%d", taskID, n)

	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var st taskstate.State
			if err := json.Unmarshal(data, &st); err == nil {
				return st
			}
		}
	}

	st := taskstate.ComputeAt(entries, n)

	if s.cache != nil {
		if data, err := json.Marshal(st); err == nil {
			if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
				s.logger.Debug("state cache set failed", "task_id", taskID, "error", err)
			}
		}
	}
	return st
}
