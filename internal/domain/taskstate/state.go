// Package taskstate derives a task's current state by replaying its
// context entries in order. The fold is deterministic: it depends only on
// entry order, never on wall-clock time, and performs no I/O.
package taskstate

import (
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/entry"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/task"
)

// State is the snapshot obtained by folding a task's entries. It is never
// stored independently of the log it was computed from.
type State struct {
	Status       task.Status    `json:"status"`
	Phase        string         `json:"phase"`
	Completeness int            `json:"completeness"`
	Data         map[string]any `json:"data"`
}

// Compute folds all entries into a State.
func Compute(entries []entry.ContextEntry) State {
	return ComputeAt(entries, len(entries))
}

// ComputeAt folds only the first n entries, supporting "state as of
// sequence n" queries for audits.
func ComputeAt(entries []entry.ContextEntry, n int) State {
	st := State{Status: task.StatusCreated, Data: map[string]any{}}
	if n > len(entries) {
		n = len(entries)
	}
	for i := 0; i < n; i++ {
		apply(&st, &entries[i])
	}
	return st
}

// apply folds a single entry: data is merged first, then the operation's
// status transition, then the phase/completeness keys the merge produced.
func apply(st *State, e *entry.ContextEntry) {
	mergeInto(st.Data, e.Data)

	switch e.Operation {
	case entry.OpTaskCreated:
		st.Status = task.StatusCreated
	case entry.OpExecutionStarted, entry.OpUserInputReceived:
		st.Status = task.StatusInProgress
	case entry.OpExecutionPaused:
		st.Status = task.StatusPausedForInput
	case entry.OpExecutionCompleted:
		st.Status = task.StatusCompleted
	case entry.OpExecutionFailed:
		st.Status = task.StatusFailed
	case entry.OpTaskRecovered:
		// Documents the recovery; the derived status is left untouched so
		// resumption sees the state the task was interrupted in.
	}

	if p, ok := st.Data["phase"].(string); ok {
		st.Phase = p
	}
	if c, ok := asInt(st.Data["completeness"]); ok {
		st.Completeness = clampCompleteness(c)
	}
}

// asInt accepts the numeric types JSON decoding and producers hand us.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func clampCompleteness(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
