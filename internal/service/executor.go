package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	levotel "github.com/gianmatteo-arcana/engine-lever-sub004/internal/adapter/otel"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/adapter/ws"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/agent"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/entry"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/task"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/port/messagequeue"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/port/taskstore"
)

// ExecutorService runs an agent against a task: it brackets the reasoning
// run with lifecycle entries in the context log, keeps the coarse task
// status in step, and notifies downstream consumers.
type ExecutorService struct {
	ctxsvc   *ContextService
	reasoner *ReasonerService
	store    taskstore.Store
	queue    messagequeue.Queue
	metrics  *levotel.Metrics
	logger   *slog.Logger
}

// NewExecutorService creates an ExecutorService. queue and metrics may be
// nil; both are best-effort side channels.
func NewExecutorService(ctxsvc *ContextService, reasoner *ReasonerService, store taskstore.Store, queue messagequeue.Queue, metrics *levotel.Metrics, logger *slog.Logger) *ExecutorService {
	return &ExecutorService{
		ctxsvc:   ctxsvc,
		reasoner: reasoner,
		store:    store,
		queue:    queue,
		metrics:  metrics,
		logger:   logger,
	}
}

// Execute runs one agent execution over a task operation. The
// execution_started entry must be durable before any work begins; if that
// append fails the execution never ran. Every run ends with exactly one
// terminal entry (execution_completed, execution_paused, or
// execution_failed) and a matching coarse status update.
func (s *ExecutorService) Execute(ctx context.Context, ag agent.Agent, req RunRequest) (*RunResult, error) {
	ctx, span := levotel.StartExecutionSpan(ctx, req.TaskID, ag.ID, req.Operation)
	defer span.End()
	start := time.Now()

	actor := entry.Actor{Type: entry.ActorAgent, ID: ag.ID, Version: ag.Version}
	trigger := entry.Trigger{Type: entry.TriggerOrchestratorRequest, Source: "executor"}

	started := &entry.ContextEntry{
		TaskID:    req.TaskID,
		Actor:     actor,
		Operation: entry.OpExecutionStarted,
		Data: map[string]any{
			"operation":  req.Operation,
			"parameters": req.Parameters,
		},
		Reasoning: fmt.Sprintf("starting %s", req.Operation),
		Trigger:   trigger,
	}
	if err := s.ctxsvc.Append(ctx, started); err != nil {
		return nil, fmt.Errorf("append execution_started: %w", err)
	}

	s.setStatus(ctx, req.TaskID, task.StatusInProgress)
	if s.metrics != nil {
		s.metrics.Executions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", req.Operation)))
	}

	res, err := s.reasoner.Run(ctx, req)
	if err != nil {
		s.recordFailure(ctx, ag, req, "decider_unreachable", err.Error())
		return nil, fmt.Errorf("reasoning run: %w", err)
	}

	switch res.Status {
	case RunCompleted:
		data := map[string]any{}
		for k, v := range res.Data {
			data[k] = v
		}
		data["result_status"] = RunCompleted
		data["trace"] = traceMap(res)
		s.appendLifecycle(ctx, &entry.ContextEntry{
			TaskID:     req.TaskID,
			Actor:      actor,
			Operation:  entry.OpExecutionCompleted,
			Data:       data,
			Reasoning:  res.Reasoning,
			Confidence: res.Confidence,
			Trigger:    trigger,
		})
		s.setStatus(ctx, req.TaskID, task.StatusCompleted)
		s.publish(ctx, messagequeue.SubjectExecutionCompleted, messagequeue.ExecutionPayload{
			TaskID:    req.TaskID,
			AgentID:   ag.ID,
			Operation: req.Operation,
			Status:    string(task.StatusCompleted),
		})

	case RunNeedsInput:
		s.appendLifecycle(ctx, &entry.ContextEntry{
			TaskID:    req.TaskID,
			Actor:     actor,
			Operation: entry.OpExecutionPaused,
			Data: map[string]any{
				"needed_fields": res.NeededFields,
				"trace":         traceMap(res),
			},
			Reasoning:  res.Reasoning,
			Confidence: res.Confidence,
			Trigger:    trigger,
		})
		s.setStatus(ctx, req.TaskID, task.StatusPausedForInput)
		s.publish(ctx, messagequeue.SubjectExecutionPaused, messagequeue.ExecutionPayload{
			TaskID:       req.TaskID,
			AgentID:      ag.ID,
			Operation:    req.Operation,
			Status:       string(task.StatusPausedForInput),
			NeededFields: res.NeededFields,
		})

	case RunError:
		s.appendLifecycle(ctx, &entry.ContextEntry{
			TaskID:    req.TaskID,
			Actor:     actor,
			Operation: entry.OpExecutionFailed,
			Data: map[string]any{
				"error_kind": res.ErrorKind,
				"partial":    res.Data,
				"trace":      traceMap(res),
			},
			Reasoning: res.Reasoning,
			Trigger:   trigger,
		})
		s.setStatus(ctx, req.TaskID, task.StatusFailed)
		if s.metrics != nil {
			s.metrics.ExecutionsFailed.Add(ctx, 1, metric.WithAttributes(
				attribute.String("error_kind", res.ErrorKind)))
		}
		s.publish(ctx, messagequeue.SubjectExecutionFailed, messagequeue.ExecutionPayload{
			TaskID:    req.TaskID,
			AgentID:   ag.ID,
			Operation: req.Operation,
			Status:    string(task.StatusFailed),
			ErrorKind: res.ErrorKind,
		})
	}

	if s.metrics != nil {
		s.metrics.ExecutionDuration.Record(ctx, time.Since(start).Seconds())
		s.metrics.ToolCalls.Add(ctx, int64(len(res.Trace.ToolCalls)))
	}
	return res, nil
}

// recordFailure writes the execution_failed entry and status for an
// infrastructure error that aborted the run.
func (s *ExecutorService) recordFailure(ctx context.Context, ag agent.Agent, req RunRequest, kind, msg string) {
	s.appendLifecycle(ctx, &entry.ContextEntry{
		TaskID:    req.TaskID,
		Actor:     entry.Actor{Type: entry.ActorAgent, ID: ag.ID, Version: ag.Version},
		Operation: entry.OpExecutionFailed,
		Data: map[string]any{
			"error_kind": kind,
			"error":      msg,
		},
		Reasoning: msg,
		Trigger:   entry.Trigger{Type: entry.TriggerSystemEvent, Source: "executor"},
	})
	s.setStatus(ctx, req.TaskID, task.StatusFailed)
	if s.metrics != nil {
		s.metrics.ExecutionsFailed.Add(ctx, 1, metric.WithAttributes(
			attribute.String("error_kind", kind)))
	}
	s.publish(ctx, messagequeue.SubjectExecutionFailed, messagequeue.ExecutionPayload{
		TaskID:    req.TaskID,
		AgentID:   ag.ID,
		Operation: req.Operation,
		Status:    string(task.StatusFailed),
		ErrorKind: kind,
	})
}

// appendLifecycle appends a terminal entry. The run already happened, so
// a failed append is logged rather than unwinding the execution.
func (s *ExecutorService) appendLifecycle(ctx context.Context, e *entry.ContextEntry) {
	if err := s.ctxsvc.Append(ctx, e); err != nil {
		s.logger.Error("append lifecycle entry failed",
			"task_id", e.TaskID, "operation", e.Operation, "error", err)
	}
}

func (s *ExecutorService) setStatus(ctx context.Context, taskID string, status task.Status) {
	if err := s.store.UpdateStatus(ctx, taskID, status); err != nil {
		s.logger.Error("update task status failed",
			"task_id", taskID, "status", status, "error", err)
		return
	}
	if s.ctxsvc.hub != nil {
		s.ctxsvc.hub.BroadcastEvent(ctx, ws.EventTaskStatus, ws.TaskStatusEvent{
			TaskID: taskID,
			Status: string(status),
		})
	}
}

// publish sends a lifecycle notification. Delivery is best-effort.
func (s *ExecutorService) publish(ctx context.Context, subject string, payload messagequeue.ExecutionPayload) {
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("marshal queue payload failed", "subject", subject, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		s.logger.Error("publish failed", "subject", subject, "task_id", payload.TaskID, "error", err)
	}
}

// traceMap renders the run trace for storage inside an entry's data.
func traceMap(res *RunResult) map[string]any {
	tools := make([]map[string]any, 0, len(res.Trace.ToolCalls))
	for _, tc := range res.Trace.ToolCalls {
		tools = append(tools, map[string]any{"name": tc.Name, "iteration": tc.Iteration})
	}
	return map[string]any{
		"iterations":  res.Trace.Iterations,
		"tool_calls":  tools,
		"duration_ms": res.Trace.DurationMS,
	}
}
