package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	levotel "github.com/gianmatteo-arcana/engine-lever-sub004/internal/adapter/otel"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/adapter/ws"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/entry"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/task"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/taskstate"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/port/messagequeue"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/port/taskstore"
)

// Resumer restarts work on a recovered task from its reconstructed state.
type Resumer interface {
	Resume(ctx context.Context, t *task.Task, st taskstate.State, entries []entry.ContextEntry) error
}

// RecoveryService finds tasks orphaned by a process crash (coarse status
// in_progress with no live execution) and restarts them from the context
// log, which survived by construction.
type RecoveryService struct {
	store       taskstore.Store
	ctxsvc      *ContextService
	queue       messagequeue.Queue
	metrics     *levotel.Metrics
	resumer     Resumer
	maxParallel int
	logger      *slog.Logger
}

// NewRecoveryService creates a RecoveryService. queue and metrics may be
// nil.
func NewRecoveryService(store taskstore.Store, ctxsvc *ContextService, queue messagequeue.Queue, metrics *levotel.Metrics, resumer Resumer, maxParallel int, logger *slog.Logger) *RecoveryService {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &RecoveryService{
		store:       store,
		ctxsvc:      ctxsvc,
		queue:       queue,
		metrics:     metrics,
		resumer:     resumer,
		maxParallel: maxParallel,
		logger:      logger,
	}
}

// Run performs one sweep over all in_progress tasks and returns how many
// were recovered. A task is re-queued to created before resumption, so a
// second sweep racing the first finds nothing left to do.
func (s *RecoveryService) Run(ctx context.Context) (int, error) {
	ctx, span := levotel.StartRecoverySpan(ctx)
	defer span.End()

	orphans, err := s.store.ListByStatus(ctx, task.StatusInProgress)
	if err != nil {
		return 0, fmt.Errorf("list orphaned tasks: %w", err)
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	s.logger.Info("recovery sweep", "orphaned", len(orphans))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)

	recovered := 0
	results := make(chan bool, len(orphans))
	for i := range orphans {
		t := orphans[i]
		g.Go(func() error {
			results <- s.recoverTask(gctx, &t)
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	for ok := range results {
		if ok {
			recovered++
		}
	}
	return recovered, nil
}

// recoverTask restores one orphaned task. The context log is the sole
// source of truth: a task whose log cannot be read or is empty cannot be
// resumed and is marked failed instead.
func (s *RecoveryService) recoverTask(ctx context.Context, t *task.Task) bool {
	entries, err := s.ctxsvc.History(ctx, t.ID, 0)
	if err != nil {
		s.logger.Error("recovery: context log unreadable", "task_id", t.ID, "error", err)
		s.markFailed(ctx, t.ID)
		return false
	}
	if len(entries) == 0 {
		s.logger.Error("recovery: context log empty", "task_id", t.ID)
		s.markFailed(ctx, t.ID)
		return false
	}

	st := taskstate.Compute(entries)

	rec := &entry.ContextEntry{
		TaskID:    t.ID,
		Actor:     entry.Actor{Type: entry.ActorSystem, ID: "recovery-sweep"},
		Operation: entry.OpTaskRecovered,
		Data: map[string]any{
			"last_phase":   st.Phase,
			"completeness": st.Completeness,
		},
		Reasoning: "process restarted while task was executing",
		Trigger:   entry.Trigger{Type: entry.TriggerSystemEvent, Source: "recovery"},
	}
	if err := s.ctxsvc.Append(ctx, rec); err != nil {
		// Leave the task in_progress; the next sweep retries.
		s.logger.Error("recovery: append task_recovered failed", "task_id", t.ID, "error", err)
		return false
	}

	if err := s.store.UpdateStatus(ctx, t.ID, task.StatusCreated); err != nil {
		s.logger.Error("recovery: re-queue failed", "task_id", t.ID, "error", err)
		return false
	}

	if s.metrics != nil {
		s.metrics.TasksRecovered.Add(ctx, 1)
	}
	s.publishRecovered(ctx, t.ID, st.Phase)
	if s.ctxsvc.hub != nil {
		s.ctxsvc.hub.BroadcastEvent(ctx, ws.EventTaskRecovered, ws.TaskRecoveredEvent{
			TaskID:    t.ID,
			LastPhase: st.Phase,
		})
	}

	if s.resumer != nil {
		if err := s.resumer.Resume(ctx, t, st, entries); err != nil {
			s.logger.Error("recovery: resume failed", "task_id", t.ID, "error", err)
			s.markFailed(ctx, t.ID)
			return false
		}
	}

	s.logger.Info("task recovered", "task_id", t.ID, "last_phase", st.Phase)
	return true
}

func (s *RecoveryService) markFailed(ctx context.Context, taskID string) {
	if err := s.store.UpdateStatus(ctx, taskID, task.StatusFailed); err != nil {
		s.logger.Error("recovery: mark failed errored", "task_id", taskID, "error", err)
	}
}

func (s *RecoveryService) publishRecovered(ctx context.Context, taskID, lastPhase string) {
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(messagequeue.RecoveredPayload{
		TaskID:    taskID,
		LastPhase: lastPhase,
		Reason:    "process restarted while task was executing",
	})
	if err != nil {
		s.logger.Error("recovery: marshal payload failed", "error", err)
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectTaskRecovered, data); err != nil {
		s.logger.Error("recovery: publish failed", "task_id", taskID, "error", err)
	}
}

// Start launches a periodic sweep. The returned function stops it.
func (s *RecoveryService) Start(ctx context.Context, interval time.Duration) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Run(ctx); err != nil {
					s.logger.Error("recovery sweep failed", "error", err)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
