// Package reasoning contains the pure building blocks of the agent
// reasoning loop: the decision variant, circular-reasoning detection, and
// the execution trace.
package reasoning

import (
	"errors"
	"fmt"
)

// DecisionType tags the variant of a Decision.
type DecisionType string

const (
	DecisionToolCall       DecisionType = "tool_call"
	DecisionAnswer         DecisionType = "answer"
	DecisionNeedsUserInput DecisionType = "needs_user_input"
	DecisionHelp           DecisionType = "help"
	DecisionContinue       DecisionType = "continue"
)

// Decision is one iteration's outcome from the decision-maker. Only the
// fields of the tagged variant are meaningful; Validate enforces the
// per-variant shape once at the trust boundary, so downstream code never
// re-interprets the payload.
type Decision struct {
	Type       DecisionType   `json:"type"`
	Thought    string         `json:"thought,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	Knowledge  map[string]any `json:"knowledge,omitempty"`

	// tool_call
	Tool   string         `json:"tool,omitempty"`
	Params map[string]any `json:"params,omitempty"`

	// answer
	Answer map[string]any `json:"answer,omitempty"`

	// needs_user_input. The caller builds a request schema from this list
	// only; the core never fabricates one.
	NeededFields []string `json:"needed_fields,omitempty"`

	// help
	Reason string `json:"reason,omitempty"`
}

// Validate checks the per-variant payload shape.
func (d *Decision) Validate() error {
	switch d.Type {
	case DecisionToolCall:
		if d.Tool == "" {
			return errors.New("tool_call decision missing tool name")
		}
	case DecisionAnswer:
		if d.Answer == nil {
			return errors.New("answer decision missing answer payload")
		}
	case DecisionNeedsUserInput:
		if len(d.NeededFields) == 0 {
			return errors.New("needs_user_input decision missing field list")
		}
	case DecisionHelp, DecisionContinue:
	default:
		return fmt.Errorf("unknown decision type %q", d.Type)
	}
	return nil
}

// MergeKnowledge merges src into dst with src winning on conflicting keys.
// A nil dst is allocated; the returned map is always non-nil.
func MergeKnowledge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
