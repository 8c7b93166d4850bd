package reasoning

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
)

// repeatLimit is how many repetitions of the same decision trip the
// detector: the 3rd consecutive identical tool call, or the 3rd recurrence
// of the same thought text.
const repeatLimit = 3

// CircularTracker detects repeated identical decisions across loop
// iterations. An unconstrained think/act loop driven by a probabilistic
// decision-maker can spin forever without measurable progress; the tracker
// force-terminates it instead.
type CircularTracker struct {
	lastTool       string
	lastParamsHash uint64
	toolRepeats    int
	thoughtCounts  map[uint64]int
	pattern        string
}

// NewCircularTracker creates an empty tracker for one loop invocation.
func NewCircularTracker() *CircularTracker {
	return &CircularTracker{thoughtCounts: make(map[uint64]int)}
}

// RecordToolCall records a tool_call decision and returns true when the
// same tool is chosen for the 3rd consecutive time with an unchanged
// parameter set. A different tool or changed params resets the run.
func (c *CircularTracker) RecordToolCall(tool string, params map[string]any) bool {
	h := hashParams(params)
	if tool == c.lastTool && h == c.lastParamsHash {
		c.toolRepeats++
	} else {
		c.lastTool = tool
		c.lastParamsHash = h
		c.toolRepeats = 1
	}
	if c.toolRepeats >= repeatLimit {
		c.pattern = fmt.Sprintf("tool %q chosen %d times in a row with unchanged params", tool, c.toolRepeats)
		return true
	}
	return false
}

// RecordThought records an iteration's thought text and returns true when
// its normalized form has now occurred 3 times. Empty thoughts are ignored.
func (c *CircularTracker) RecordThought(thought string) bool {
	norm := normalizeThought(thought)
	if norm == "" {
		return false
	}
	h := hashText(norm)
	c.thoughtCounts[h]++
	if c.thoughtCounts[h] >= repeatLimit {
		c.pattern = fmt.Sprintf("thought repeated %d times: %q", c.thoughtCounts[h], truncate(thought, 120))
		return true
	}
	return false
}

// Pattern returns a description of the offending repetition, for
// diagnostics on the terminal result. Empty until the tracker trips.
func (c *CircularTracker) Pattern() string {
	return c.pattern
}

// hashParams hashes a parameter set. json.Marshal sorts map keys, so two
// semantically equal sets hash identically.
func hashParams(params map[string]any) uint64 {
	data, err := json.Marshal(params)
	if err != nil {
		return 0
	}
	return hashText(string(data))
}

func normalizeThought(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func hashText(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
