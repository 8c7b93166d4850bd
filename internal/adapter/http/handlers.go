// Package http exposes the ops surface of the execution core: task
// creation, context history, derived state, user input submission, and
// the recovery trigger.
package http

import (
	"net/http"
	"strconv"

	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/agent"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/task"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/port/messagequeue"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/service"
)

// Handlers holds the services the HTTP surface delegates to.
type Handlers struct {
	ctxsvc   *service.ContextService
	executor *service.ExecutorService
	orch     *service.OrchestratorService
	recovery *service.RecoveryService
	queue    messagequeue.Queue
}

// NewHandlers creates the handler set. queue may be nil (health reports
// it as disconnected).
func NewHandlers(ctxsvc *service.ContextService, executor *service.ExecutorService, orch *service.OrchestratorService, recovery *service.RecoveryService, queue messagequeue.Queue) *Handlers {
	return &Handlers{
		ctxsvc:   ctxsvc,
		executor: executor,
		orch:     orch,
		recovery: recovery,
		queue:    queue,
	}
}

// CreateTask handles POST /api/v1/tasks.
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.CreateRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.BusinessID, "business_id") || !requireField(w, req.Type, "type") {
		return
	}

	t, err := h.ctxsvc.CreateTask(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "task not created")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// GetTask handles GET /api/v1/tasks/{taskID}.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "taskID")
	t, err := h.ctxsvc.GetTask(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// GetHistory handles GET /api/v1/tasks/{taskID}/context?from=N.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "taskID")
	from, _ := strconv.Atoi(r.URL.Query().Get("from"))

	entries, err := h.ctxsvc.History(r.Context(), id, from)
	if err != nil {
		writeDomainError(w, err, "history not available")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task_id": id,
		"entries": entries,
	})
}

// GetState handles GET /api/v1/tasks/{taskID}/state?at=N. Without ?at it
// returns the current state; with it, the state as of sequence N.
func (h *Handlers) GetState(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "taskID")

	atParam := r.URL.Query().Get("at")
	if atParam == "" {
		st, err := h.ctxsvc.State(r.Context(), id)
		if err != nil {
			writeDomainError(w, err, "state not available")
			return
		}
		writeJSON(w, http.StatusOK, st)
		return
	}

	at, err := strconv.Atoi(atParam)
	if err != nil || at < 0 {
		writeError(w, http.StatusBadRequest, "at must be a non-negative integer")
		return
	}
	st, err := h.ctxsvc.StateAt(r.Context(), id, at)
	if err != nil {
		writeDomainError(w, err, "state not available")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type executeRequest struct {
	AgentID      string         `json:"agent_id"`
	AgentVersion string         `json:"agent_version,omitempty"`
	Operation    string         `json:"operation"`
	Parameters   map[string]any `json:"parameters,omitempty"`
}

// ExecuteTask handles POST /api/v1/tasks/{taskID}/execute. The call is
// synchronous: it returns the terminal result of the reasoning run.
func (h *Handlers) ExecuteTask(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "taskID")
	req, ok := readJSON[executeRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.AgentID, "agent_id") || !requireField(w, req.Operation, "operation") {
		return
	}

	if _, err := h.ctxsvc.GetTask(r.Context(), id); err != nil {
		writeDomainError(w, err, "task not found")
		return
	}

	ag := agent.Agent{ID: req.AgentID, Version: req.AgentVersion}
	res, err := h.executor.Execute(r.Context(), ag, service.RunRequest{
		TaskID:     id,
		Operation:  req.Operation,
		Parameters: req.Parameters,
	})
	if err != nil {
		writeDomainError(w, err, "execution failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        res.Status,
		"data":          res.Data,
		"reasoning":     res.Reasoning,
		"needed_fields": res.NeededFields,
		"error_kind":    res.ErrorKind,
		"trace":         res.Trace,
	})
}

type userInputRequest struct {
	UserID string         `json:"user_id"`
	Fields map[string]any `json:"fields"`
}

// SubmitInput handles POST /api/v1/tasks/{taskID}/input for tasks paused
// awaiting user input.
func (h *Handlers) SubmitInput(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "taskID")
	req, ok := readJSON[userInputRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.UserID, "user_id") {
		return
	}
	if len(req.Fields) == 0 {
		writeError(w, http.StatusBadRequest, "fields is required")
		return
	}

	if err := h.orch.SubmitUserInput(r.Context(), id, req.UserID, req.Fields); err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "resumed"})
}

// RunRecovery handles POST /api/v1/recovery/run, triggering one sweep.
func (h *Handlers) RunRecovery(w http.ResponseWriter, r *http.Request) {
	recovered, err := h.recovery.Run(r.Context())
	if err != nil {
		writeDomainError(w, err, "recovery sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"recovered": recovered})
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	natsConnected := h.queue != nil && h.queue.IsConnected()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"nats":   natsConnected,
	})
}
