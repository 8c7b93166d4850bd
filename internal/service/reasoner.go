package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	levotel "github.com/gianmatteo-arcana/engine-lever-sub004/internal/adapter/otel"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/reasoning"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/port/toolregistry"
)

// Run result statuses. Exactly one of these is returned by every
// completed reasoning run; the executor maps them to lifecycle entries.
const (
	RunCompleted  = "completed"
	RunNeedsInput = "needs_input"
	RunError      = "error"
)

// Error kinds attached to RunError results.
const (
	ErrKindCircular      = "circular_reasoning_detected"
	ErrKindMaxIterations = "max_iterations_reached"
	ErrKindHelp          = "help_requested"
	ErrKindUnauthorized  = "authorization_denied"
	ErrKindNoToolSupport = "tool_support_unavailable"
)

// Decider produces one Decision per loop iteration. Implementations call
// an LLM; tests supply scripted sequences.
type Decider interface {
	Decide(ctx context.Context, req DecideRequest) (*reasoning.Decision, error)
}

// DecideRequest is the full context handed to the decision-maker each
// iteration.
type DecideRequest struct {
	TaskID       string
	Operation    string
	Parameters   map[string]any
	Knowledge    map[string]any
	Observations []Observation
	Iteration    int
	Tools        []string
}

// Observation is the outcome of one tool invocation (or a validation
// failure), fed back to the decision-maker on the next iteration.
type Observation struct {
	Tool   string         `json:"tool,omitempty"`
	Result map[string]any `json:"result,omitempty"`
	Err    string         `json:"error,omitempty"`
}

// RunRequest describes one reasoning run over a task operation.
type RunRequest struct {
	TaskID     string
	Operation  string
	Parameters map[string]any
}

// RunResult is the terminal outcome of a reasoning run. Data carries the
// answer payload on completion, or the partial accumulated knowledge on a
// bounded/circular exit so the work is not silently discarded.
type RunResult struct {
	Status       string
	Data         map[string]any
	Reasoning    string
	Confidence   float64
	NeededFields []string
	ErrorKind    string
	Trace        reasoning.Trace
}

// ReasonerService runs the bounded think/act loop. With a tool registry it
// iterates decide/invoke/observe; without one it degrades to a single
// decision pass.
type ReasonerService struct {
	decider       Decider
	tools         toolregistry.Registry
	maxIterations int
	toolTimeout   time.Duration
	logger        *slog.Logger
}

// NewReasonerService creates a ReasonerService. tools may be nil, which
// selects the single-pass fallback mode.
func NewReasonerService(decider Decider, tools toolregistry.Registry, maxIterations int, toolTimeout time.Duration, logger *slog.Logger) *ReasonerService {
	return &ReasonerService{
		decider:       decider,
		tools:         tools,
		maxIterations: maxIterations,
		toolTimeout:   toolTimeout,
		logger:        logger,
	}
}

// Run executes the reasoning loop for one operation. It always returns a
// tagged RunResult unless the decision-maker itself is unreachable, in
// which case the error propagates for the caller's failure handling.
// Without a tool registry it degrades to a single non-iterative pass.
func (s *ReasonerService) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if s.tools == nil {
		return s.singlePass(ctx, req)
	}

	start := time.Now()
	tracker := reasoning.NewCircularTracker()
	knowledge := map[string]any{}
	var observations []Observation
	trace := reasoning.Trace{}

	toolNames := s.tools.Names()

	finish := func(res *RunResult) *RunResult {
		trace.Knowledge = knowledge
		trace.DurationMS = time.Since(start).Milliseconds()
		res.Trace = trace
		return res
	}

	for iter := 1; iter <= s.maxIterations; iter++ {
		trace.Iterations = iter

		d, err := s.decider.Decide(ctx, DecideRequest{
			TaskID:       req.TaskID,
			Operation:    req.Operation,
			Parameters:   req.Parameters,
			Knowledge:    knowledge,
			Observations: observations,
			Iteration:    iter,
			Tools:        toolNames,
		})
		if err != nil {
			return nil, fmt.Errorf("decide iteration %d: %w", iter, err)
		}

		if err := d.Validate(); err != nil {
			s.logger.Warn("invalid decision", "task_id", req.TaskID, "iteration", iter, "error", err)
			observations = append(observations, Observation{Err: fmt.Sprintf("invalid decision: %v", err)})
			continue
		}

		if tracker.RecordThought(d.Thought) {
			return finish(&RunResult{
				Status:    RunError,
				ErrorKind: ErrKindCircular,
				Reasoning: tracker.Pattern(),
				Data:      maps.Clone(knowledge),
			}), nil
		}

		knowledge = reasoning.MergeKnowledge(knowledge, d.Knowledge)

		switch d.Type {
		case reasoning.DecisionAnswer:
			return finish(&RunResult{
				Status:     RunCompleted,
				Data:       reasoning.MergeKnowledge(maps.Clone(knowledge), d.Answer),
				Reasoning:  d.Thought,
				Confidence: d.Confidence,
			}), nil

		case reasoning.DecisionNeedsUserInput:
			return finish(&RunResult{
				Status:       RunNeedsInput,
				NeededFields: d.NeededFields,
				Reasoning:    d.Thought,
				Confidence:   d.Confidence,
				Data:         maps.Clone(knowledge),
			}), nil

		case reasoning.DecisionHelp:
			return finish(&RunResult{
				Status:    RunError,
				ErrorKind: ErrKindHelp,
				Reasoning: d.Reason,
				Data:      maps.Clone(knowledge),
			}), nil

		case reasoning.DecisionContinue:
			continue

		case reasoning.DecisionToolCall:
			if tracker.RecordToolCall(d.Tool, d.Params) {
				return finish(&RunResult{
					Status:    RunError,
					ErrorKind: ErrKindCircular,
					Reasoning: tracker.Pattern(),
					Data:      maps.Clone(knowledge),
				}), nil
			}

			obs, terminal := s.invoke(ctx, d.Tool, d.Params, iter)
			trace.ToolCalls = append(trace.ToolCalls, reasoning.ToolInvocation{Name: d.Tool, Iteration: iter})
			if terminal {
				return finish(&RunResult{
					Status:    RunError,
					ErrorKind: ErrKindUnauthorized,
					Reasoning: obs.Err,
					Data:      maps.Clone(knowledge),
				}), nil
			}
			observations = append(observations, obs)
		}
	}

	return finish(&RunResult{
		Status:    RunError,
		ErrorKind: ErrKindMaxIterations,
		Reasoning: fmt.Sprintf("no terminal decision after %d iterations", s.maxIterations),
		Data:      maps.Clone(knowledge),
	}), nil
}

// singlePass runs the degraded mode used when no tool registry is
// configured: one decision, mapped directly to a result, no trace.
func (s *ReasonerService) singlePass(ctx context.Context, req RunRequest) (*RunResult, error) {
	d, err := s.decider.Decide(ctx, DecideRequest{
		TaskID:     req.TaskID,
		Operation:  req.Operation,
		Parameters: req.Parameters,
		Iteration:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("decide single pass: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid decision in single pass: %w", err)
	}

	knowledge := reasoning.MergeKnowledge(nil, d.Knowledge)

	switch d.Type {
	case reasoning.DecisionAnswer:
		return &RunResult{
			Status:     RunCompleted,
			Data:       reasoning.MergeKnowledge(knowledge, d.Answer),
			Reasoning:  d.Thought,
			Confidence: d.Confidence,
		}, nil

	case reasoning.DecisionNeedsUserInput:
		return &RunResult{
			Status:       RunNeedsInput,
			NeededFields: d.NeededFields,
			Reasoning:    d.Thought,
			Confidence:   d.Confidence,
			Data:         knowledge,
		}, nil

	case reasoning.DecisionHelp:
		return &RunResult{
			Status:    RunError,
			ErrorKind: ErrKindHelp,
			Reasoning: d.Reason,
			Data:      knowledge,
		}, nil

	case reasoning.DecisionToolCall:
		return &RunResult{
			Status:    RunError,
			ErrorKind: ErrKindNoToolSupport,
			Reasoning: fmt.Sprintf("decision requested tool %q but no registry is configured", d.Tool),
			Data:      knowledge,
		}, nil

	default: // continue has nowhere to go without the loop
		return &RunResult{
			Status:    RunError,
			ErrorKind: ErrKindMaxIterations,
			Reasoning: "no terminal decision in single pass",
			Data:      knowledge,
		}, nil
	}
}

// invoke runs one tool call under the configured timeout. An
// authorization refusal is terminal; every other failure, timeouts
// included, becomes an observation for the next iteration.
func (s *ReasonerService) invoke(ctx context.Context, tool string, params map[string]any, iteration int) (Observation, bool) {
	ctx, span := levotel.StartToolCallSpan(ctx, tool, iteration)
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, s.toolTimeout)
	defer cancel()

	result, err := s.tools.Invoke(callCtx, tool, params)
	if err != nil {
		if errors.Is(err, toolregistry.ErrUnauthorized) {
			return Observation{Tool: tool, Err: err.Error()}, true
		}
		s.logger.Warn("tool invocation failed", "tool", tool, "error", err)
		return Observation{Tool: tool, Err: err.Error()}, false
	}
	return Observation{Tool: tool, Result: result}, false
}
