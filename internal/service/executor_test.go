package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/agent"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/entry"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/reasoning"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/task"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/port/messagequeue"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/port/toolregistry"
)

type executorFixture struct {
	log      *memLog
	store    *memStore
	queue    *captureQueue
	bc       *captureBroadcaster
	executor *ExecutorService
}

func newExecutorFixture(t *testing.T, decisions []reasoning.Decision) *executorFixture {
	t.Helper()
	log := newMemLog()
	store := newMemStore()
	queue := &captureQueue{}
	bc := &captureBroadcaster{}

	ctxsvc := NewContextService(log, store, nil, bc, time.Minute, testLogger())
	reasoner := newTestReasoner(&scriptDecider{decisions: decisions}, toolregistry.NewInProcess(), 10)
	executor := NewExecutorService(ctxsvc, reasoner, store, queue, nil, testLogger())

	if err := store.Create(context.Background(), &task.Task{ID: "t1", BusinessID: "b1", Type: "verify_business"}); err != nil {
		t.Fatal(err)
	}
	return &executorFixture{log: log, store: store, queue: queue, bc: bc, executor: executor}
}

var testAgent = agent.Agent{ID: "verifier", Name: "Business Verifier", Version: "2"}

func TestExecuteCompletedLifecycle(t *testing.T) {
	f := newExecutorFixture(t, []reasoning.Decision{
		{Type: reasoning.DecisionAnswer, Thought: "verified", Confidence: 0.85, Answer: map[string]any{"verified": true}},
	})

	res, err := f.executor.Execute(context.Background(), testAgent, RunRequest{
		TaskID: "t1", Operation: "verify_business",
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if res.Status != RunCompleted {
		t.Fatalf("expected completed, got %s", res.Status)
	}

	ops := f.log.ops("t1")
	want := []string{entry.OpExecutionStarted, entry.OpExecutionCompleted}
	if len(ops) != 2 || ops[0] != want[0] || ops[1] != want[1] {
		t.Fatalf("expected entries %v, got %v", want, ops)
	}
	if got := f.store.status("t1"); got != task.StatusCompleted {
		t.Errorf("expected status completed, got %s", got)
	}

	subjects := f.queue.subjects()
	if len(subjects) != 1 || subjects[0] != messagequeue.SubjectExecutionCompleted {
		t.Errorf("expected completed publication, got %v", subjects)
	}

	// Terminal entry carries the result and the trace.
	terminal := f.log.entries["t1"][1]
	if terminal.Data["verified"] != true {
		t.Errorf("expected answer in terminal data, got %v", terminal.Data)
	}
	if terminal.Data["result_status"] != RunCompleted {
		t.Errorf("expected result_status, got %v", terminal.Data["result_status"])
	}
	if _, ok := terminal.Data["trace"].(map[string]any); !ok {
		t.Errorf("expected trace map in terminal data, got %T", terminal.Data["trace"])
	}
	if terminal.Confidence != 0.85 {
		t.Errorf("expected confidence 0.85, got %v", terminal.Confidence)
	}
	if terminal.Actor.ID != "verifier" || terminal.Actor.Version != "2" {
		t.Errorf("expected agent actor with version, got %+v", terminal.Actor)
	}
}

func TestExecutePausedOnNeedsInput(t *testing.T) {
	f := newExecutorFixture(t, []reasoning.Decision{
		{Type: reasoning.DecisionNeedsUserInput, Thought: "need EIN", NeededFields: []string{"ein"}},
	})

	res, err := f.executor.Execute(context.Background(), testAgent, RunRequest{
		TaskID: "t1", Operation: "verify_business",
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if res.Status != RunNeedsInput {
		t.Fatalf("expected needs_input, got %s", res.Status)
	}

	ops := f.log.ops("t1")
	if len(ops) != 2 || ops[1] != entry.OpExecutionPaused {
		t.Fatalf("expected execution_paused terminal entry, got %v", ops)
	}
	if got := f.store.status("t1"); got != task.StatusPausedForInput {
		t.Errorf("expected paused_for_input, got %s", got)
	}
	subjects := f.queue.subjects()
	if len(subjects) != 1 || subjects[0] != messagequeue.SubjectExecutionPaused {
		t.Errorf("expected paused publication, got %v", subjects)
	}
}

func TestExecuteFailedOnRunError(t *testing.T) {
	f := newExecutorFixture(t, []reasoning.Decision{
		{Type: reasoning.DecisionHelp, Reason: "stuck"},
	})

	res, err := f.executor.Execute(context.Background(), testAgent, RunRequest{
		TaskID: "t1", Operation: "verify_business",
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if res.Status != RunError {
		t.Fatalf("expected error result, got %s", res.Status)
	}

	ops := f.log.ops("t1")
	if len(ops) != 2 || ops[1] != entry.OpExecutionFailed {
		t.Fatalf("expected execution_failed terminal entry, got %v", ops)
	}
	if got := f.store.status("t1"); got != task.StatusFailed {
		t.Errorf("expected failed, got %s", got)
	}
	terminal := f.log.entries["t1"][1]
	if terminal.Data["error_kind"] != ErrKindHelp {
		t.Errorf("expected error_kind in terminal data, got %v", terminal.Data["error_kind"])
	}
}

func TestExecuteDeciderFailurePropagatesAndRecords(t *testing.T) {
	log := newMemLog()
	store := newMemStore()
	queue := &captureQueue{}
	ctxsvc := NewContextService(log, store, nil, nil, time.Minute, testLogger())
	reasoner := newTestReasoner(&scriptDecider{err: errors.New("proxy down")}, toolregistry.NewInProcess(), 10)
	executor := NewExecutorService(ctxsvc, reasoner, store, queue, nil, testLogger())
	_ = store.Create(context.Background(), &task.Task{ID: "t1", Type: "verify_business"})

	_, err := executor.Execute(context.Background(), testAgent, RunRequest{TaskID: "t1", Operation: "verify_business"})
	if err == nil {
		t.Fatal("expected error to propagate")
	}

	ops := log.ops("t1")
	if len(ops) != 2 || ops[1] != entry.OpExecutionFailed {
		t.Fatalf("expected execution_failed recorded, got %v", ops)
	}
	if got := store.status("t1"); got != task.StatusFailed {
		t.Errorf("expected failed status, got %s", got)
	}
	subjects := queue.subjects()
	if len(subjects) != 1 || subjects[0] != messagequeue.SubjectExecutionFailed {
		t.Errorf("expected failed publication, got %v", subjects)
	}
}

func TestExecuteStartedAppendFailureAborts(t *testing.T) {
	log := newMemLog()
	log.appendErr = errors.New("db down")
	store := newMemStore()
	ctxsvc := NewContextService(log, store, nil, nil, time.Minute, testLogger())
	reasoner := newTestReasoner(&scriptDecider{decisions: []reasoning.Decision{
		{Type: reasoning.DecisionAnswer, Answer: map[string]any{"x": 1}},
	}}, toolregistry.NewInProcess(), 10)
	executor := NewExecutorService(ctxsvc, reasoner, store, nil, nil, testLogger())
	_ = store.Create(context.Background(), &task.Task{ID: "t1", Type: "verify_business"})

	_, err := executor.Execute(context.Background(), testAgent, RunRequest{TaskID: "t1", Operation: "verify_business"})
	if err == nil {
		t.Fatal("expected error when execution_started cannot be written")
	}
	// The task was never touched.
	if got := store.status("t1"); got != task.StatusCreated {
		t.Errorf("expected status unchanged, got %s", got)
	}
}
