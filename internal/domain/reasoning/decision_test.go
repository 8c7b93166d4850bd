package reasoning

import "testing"

func TestDecisionValidate(t *testing.T) {
	cases := []struct {
		name    string
		d       Decision
		wantErr bool
	}{
		{"tool call with name", Decision{Type: DecisionToolCall, Tool: "search"}, false},
		{"tool call missing name", Decision{Type: DecisionToolCall}, true},
		{"answer with payload", Decision{Type: DecisionAnswer, Answer: map[string]any{"ein": "12-3456789"}}, false},
		{"answer missing payload", Decision{Type: DecisionAnswer}, true},
		{"needs input with fields", Decision{Type: DecisionNeedsUserInput, NeededFields: []string{"owner_ssn"}}, false},
		{"needs input missing fields", Decision{Type: DecisionNeedsUserInput}, true},
		{"help", Decision{Type: DecisionHelp, Reason: "stuck"}, false},
		{"continue", Decision{Type: DecisionContinue}, false},
		{"unknown type", Decision{Type: "retry"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.d.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestMergeKnowledge_NewKeysWin(t *testing.T) {
	dst := map[string]any{"a": 1, "b": 2}
	got := MergeKnowledge(dst, map[string]any{"b": 3, "c": 4})
	if got["a"] != 1 || got["b"] != 3 || got["c"] != 4 {
		t.Fatalf("unexpected merge result: %v", got)
	}
}

func TestMergeKnowledge_NilDst(t *testing.T) {
	got := MergeKnowledge(nil, map[string]any{"x": "y"})
	if got == nil || got["x"] != "y" {
		t.Fatalf("expected allocated map with x=y, got %v", got)
	}
}
