// Package toolregistry defines the port for invoking named external
// capabilities (search, validation, government-portal submission) and an
// in-process registry implementation.
package toolregistry

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownTool indicates the requested tool is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// ErrUnauthorized indicates the tool refused the call for authorization
// reasons. The reasoning loop treats this as terminal rather than feeding
// it back as an observation.
var ErrUnauthorized = errors.New("tool invocation unauthorized")

// Func is a single tool implementation.
type Func func(ctx context.Context, params map[string]any) (map[string]any, error)

// Registry is the port interface the reasoning loop invokes tools through.
type Registry interface {
	// Invoke runs the named tool with the supplied parameters.
	Invoke(ctx context.Context, name string, params map[string]any) (map[string]any, error)

	// Names returns the registered tool names.
	Names() []string
}

// InProcess is a Registry backed by a plain map of registered functions.
type InProcess struct {
	mu    sync.RWMutex
	tools map[string]Func
}

// NewInProcess creates an empty in-process registry.
func NewInProcess() *InProcess {
	return &InProcess{tools: make(map[string]Func)}
}

// Register makes a tool available by name. Duplicate registration is a
// wiring bug and panics.
func (r *InProcess) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		panic(fmt.Sprintf("toolregistry: duplicate registration for %q", name))
	}
	r.tools[name] = fn
}

// Invoke runs the named tool.
func (r *InProcess) Invoke(ctx context.Context, name string, params map[string]any) (map[string]any, error) {
	r.mu.RLock()
	fn, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("invoke %q: %w", name, ErrUnknownTool)
	}
	out, err := fn(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("invoke %q: %w", name, err)
	}
	return out, nil
}

// Names returns the registered tool names.
func (r *InProcess) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}
