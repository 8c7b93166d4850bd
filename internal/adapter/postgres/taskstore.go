package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/task"
)

// TaskStore implements taskstore.Store using PostgreSQL.
type TaskStore struct {
	pool *pgxpool.Pool
}

// NewTaskStore creates a TaskStore backed by the given connection pool.
func NewTaskStore(pool *pgxpool.Pool) *TaskStore {
	return &TaskStore{pool: pool}
}

// Create persists a new task record.
func (s *TaskStore) Create(ctx context.Context, t *task.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = task.StatusCreated
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = t.CreatedAt

	_, err := s.pool.Exec(ctx,
		`INSERT INTO tasks (id, business_id, task_type, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.BusinessID, t.Type, string(t.Status), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create task %s: %w", t.ID, err)
	}
	return nil
}

const taskColumns = `id, business_id, task_type, status, created_at, updated_at`

func scanTask(row scannable, t *task.Task) error {
	return row.Scan(&t.ID, &t.BusinessID, &t.Type, &t.Status, &t.CreatedAt, &t.UpdatedAt)
}

// Get returns the task with the given id.
func (s *TaskStore) Get(ctx context.Context, id string) (*task.Task, error) {
	var t task.Task
	err := scanTask(s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, taskColumns), id), &t)
	if err != nil {
		return nil, notFoundWrap(err, "get task %s", id)
	}
	return &t, nil
}

// ListByStatus returns all tasks with the given coarse status, oldest first.
func (s *TaskStore) ListByStatus(ctx context.Context, status task.Status) ([]task.Task, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM tasks WHERE status = $1 ORDER BY created_at ASC`, taskColumns),
		string(status))
	if err != nil {
		return nil, fmt.Errorf("list tasks by status %s: %w", status, err)
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		var t task.Task
		if err := scanTask(rows, &t); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateStatus sets the coarse status of the given task.
func (s *TaskStore) UpdateStatus(ctx context.Context, id string, status task.Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status))
	return execExpectOne(tag, err, "update task %s status", id)
}
