//go:build integration

package integration_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/entry"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/task"
)

func createDBTask(t *testing.T) string {
	t.Helper()
	id := uuid.NewString()
	_, err := testPool.Exec(context.Background(),
		`INSERT INTO tasks (id, business_id, task_type, status, created_at, updated_at)
		 VALUES ($1, 'b-int', 'verify_business', $2, now(), now())`,
		id, string(task.StatusCreated))
	if err != nil {
		t.Fatalf("insert task: %v", err)
	}
	return id
}

func TestConcurrentAppendsAreGapless(t *testing.T) {
	ctx := context.Background()
	taskID := createDBTask(t)

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := &entry.ContextEntry{
				TaskID:    taskID,
				Actor:     entry.Actor{Type: entry.ActorAgent, ID: "writer"},
				Operation: "observation_recorded",
				Data:      map[string]any{"n": 1},
			}
			errs <- testLog.Append(ctx, e)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	entries, err := testLog.Read(ctx, taskID, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != writers {
		t.Fatalf("expected %d entries, got %d", writers, len(entries))
	}
	for i, e := range entries {
		if e.SequenceNumber != i+1 {
			t.Fatalf("gap or disorder at position %d: sequence %d", i, e.SequenceNumber)
		}
	}
}

func TestAppendsToDifferentTasksIndependent(t *testing.T) {
	ctx := context.Background()
	a := createDBTask(t)
	b := createDBTask(t)

	for i := 0; i < 3; i++ {
		if err := testLog.Append(ctx, &entry.ContextEntry{
			TaskID: a, Actor: entry.Actor{Type: entry.ActorSystem, ID: "s"}, Operation: "op_a",
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := testLog.Append(ctx, &entry.ContextEntry{
		TaskID: b, Actor: entry.Actor{Type: entry.ActorSystem, ID: "s"}, Operation: "op_b",
	}); err != nil {
		t.Fatal(err)
	}

	bEntries, err := testLog.Read(ctx, b, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(bEntries) != 1 || bEntries[0].SequenceNumber != 1 {
		t.Fatalf("expected task b to start its own sequence at 1, got %+v", bEntries)
	}
}

func TestReadFromSequence(t *testing.T) {
	ctx := context.Background()
	taskID := createDBTask(t)

	for i := 0; i < 5; i++ {
		if err := testLog.Append(ctx, &entry.ContextEntry{
			TaskID: taskID, Actor: entry.Actor{Type: entry.ActorSystem, ID: "s"}, Operation: "op",
		}); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := testLog.Read(ctx, taskID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected entries 3..5, got %d", len(entries))
	}
	if entries[0].SequenceNumber != 3 {
		t.Fatalf("expected first sequence 3, got %d", entries[0].SequenceNumber)
	}
}

func TestConfidenceClampedOnWrite(t *testing.T) {
	ctx := context.Background()
	taskID := createDBTask(t)

	if err := testLog.Append(ctx, &entry.ContextEntry{
		TaskID:     taskID,
		Actor:      entry.Actor{Type: entry.ActorAgent, ID: "a"},
		Operation:  "op",
		Confidence: 1.7,
	}); err != nil {
		t.Fatal(err)
	}

	entries, err := testLog.Read(ctx, taskID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Confidence != 1.0 {
		t.Fatalf("expected confidence clamped to 1.0, got %v", entries[0].Confidence)
	}
	if entries[0].Reasoning != entry.DefaultReasoning {
		t.Fatalf("expected default reasoning, got %q", entries[0].Reasoning)
	}
}
