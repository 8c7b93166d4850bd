// Package agent defines the Agent identity attached to context entries.
package agent

// Agent identifies a configured agent. The agent's capability set (tool
// registry, decision-maker, prompt templates) is wired at the composition
// root; the entity itself carries identity only.
type Agent struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}
