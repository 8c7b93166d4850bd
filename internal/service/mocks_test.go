package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/entry"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/reasoning"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/task"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/port/messagequeue"
)

// memLog is an in-memory contextlog.Log with the same sequencing contract
// as the Postgres adapter.
type memLog struct {
	mu        sync.Mutex
	entries   map[string][]entry.ContextEntry
	appendErr error
	readErr   error
}

func newMemLog() *memLog {
	return &memLog{entries: make(map[string][]entry.ContextEntry)}
}

func (l *memLog) Append(_ context.Context, e *entry.ContextEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		return l.appendErr
	}
	e.Normalize()
	if e.ID == "" {
		e.ID = fmt.Sprintf("e-%d", len(l.entries[e.TaskID])+1)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	e.SequenceNumber = len(l.entries[e.TaskID]) + 1
	l.entries[e.TaskID] = append(l.entries[e.TaskID], *e)
	return nil
}

func (l *memLog) Read(_ context.Context, taskID string, fromSequence int) ([]entry.ContextEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return nil, l.readErr
	}
	if fromSequence < 1 {
		fromSequence = 1
	}
	all := l.entries[taskID]
	out := []entry.ContextEntry{}
	for _, e := range all {
		if e.SequenceNumber >= fromSequence {
			out = append(out, e)
		}
	}
	return out, nil
}

// ops returns the operation names appended for a task, in order.
func (l *memLog) ops(taskID string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var ops []string
	for _, e := range l.entries[taskID] {
		ops = append(ops, e.Operation)
	}
	return ops
}

// memStore is an in-memory taskstore.Store.
type memStore struct {
	mu        sync.Mutex
	tasks     map[string]*task.Task
	updateErr error
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[string]*task.Task)}
}

func (s *memStore) Create(_ context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = fmt.Sprintf("task-%d", len(s.tasks)+1)
	}
	if t.Status == "" {
		t.Status = task.StatusCreated
	}
	cp := *t
	s.tasks[t.ID] = &cp
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("get task %s: %w", id, domain.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) ListByStatus(_ context.Context, status task.Status) ([]task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []task.Task
	for _, t := range s.tasks {
		if t.Status == status {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id string, status task.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("update task %s: %w", id, domain.ErrNotFound)
	}
	t.Status = status
	return nil
}

func (s *memStore) status(id string) task.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		return t.Status
	}
	return ""
}

// scriptDecider returns a fixed sequence of decisions; the last one
// repeats once the script runs out.
type scriptDecider struct {
	mu        sync.Mutex
	decisions []reasoning.Decision
	err       error
	calls     int
	requests  []DecideRequest
}

func (d *scriptDecider) Decide(_ context.Context, req DecideRequest) (*reasoning.Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	d.requests = append(d.requests, req)
	i := d.calls
	if i >= len(d.decisions) {
		i = len(d.decisions) - 1
	}
	d.calls++
	cp := d.decisions[i]
	return &cp, nil
}

// captureQueue records published messages.
type captureQueue struct {
	mu        sync.Mutex
	published []publishedMsg
}

type publishedMsg struct {
	subject string
	data    []byte
}

func (q *captureQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, publishedMsg{subject: subject, data: data})
	return nil
}

func (q *captureQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *captureQueue) Drain() error      { return nil }
func (q *captureQueue) Close() error      { return nil }
func (q *captureQueue) IsConnected() bool { return true }

func (q *captureQueue) subjects() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []string
	for _, m := range q.published {
		out = append(out, m.subject)
	}
	return out
}

// captureBroadcaster records event types broadcast to clients.
type captureBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *captureBroadcaster) BroadcastEvent(_ context.Context, eventType string, _ any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, eventType)
}

// memCache is a map-backed cache port with hit counting.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
	sets int
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) Close() {}
