package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/entry"
)

// appendRetries bounds how many times an append re-races for the next
// sequence number before giving up.
const appendRetries = 5

// ContextLog implements contextlog.Log using PostgreSQL (append-only).
type ContextLog struct {
	pool *pgxpool.Pool
}

// NewContextLog creates a ContextLog backed by the given connection pool.
func NewContextLog(pool *pgxpool.Pool) *ContextLog {
	return &ContextLog{pool: pool}
}

// Append inserts a new context entry, assigning the next gapless sequence
// number for the entry's task. Two concurrent appends for the same task may
// compute the same candidate number; the UNIQUE(task_id, sequence_number)
// constraint rejects the loser, which retries with a fresh number.
func (s *ContextLog) Append(ctx context.Context, e *entry.ContextEntry) error {
	e.Normalize()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var lastErr error
	for range appendRetries {
		err := s.pool.QueryRow(ctx,
			`INSERT INTO context_entries
			   (id, task_id, sequence_number, ts, actor, operation, data, reasoning, confidence, trigger_info)
			 SELECT $1, $2, COALESCE(MAX(sequence_number), 0) + 1, $3, $4, $5, $6, $7, $8, $9
			 FROM context_entries WHERE task_id = $2
			 RETURNING sequence_number`,
			e.ID, e.TaskID, e.Timestamp, e.Actor, e.Operation, e.Data, e.Reasoning, e.Confidence, e.Trigger).
			Scan(&e.SequenceNumber)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("append entry for task %s: %w", e.TaskID, err)
		}
		lastErr = err
	}
	return fmt.Errorf("append entry for task %s: sequence contention: %w", e.TaskID, lastErr)
}

// entryColumns is the SELECT column list for context_entries queries.
const entryColumns = `id, task_id, sequence_number, ts, actor, operation, data, reasoning, confidence, trigger_info`

// scanEntry scans a row into a ContextEntry.
func scanEntry(row scannable, e *entry.ContextEntry) error {
	return row.Scan(
		&e.ID, &e.TaskID, &e.SequenceNumber, &e.Timestamp,
		&e.Actor, &e.Operation, &e.Data, &e.Reasoning, &e.Confidence, &e.Trigger,
	)
}

// Read returns the task's entries in sequence order starting at
// fromSequence. Values <= 1 read from the beginning. An unknown task
// yields an empty slice.
func (s *ContextLog) Read(ctx context.Context, taskID string, fromSequence int) ([]entry.ContextEntry, error) {
	if fromSequence < 1 {
		fromSequence = 1
	}

	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM context_entries
		 WHERE task_id = $1 AND sequence_number >= $2
		 ORDER BY sequence_number ASC`, entryColumns),
		taskID, fromSequence)
	if err != nil {
		return nil, fmt.Errorf("read entries for task %s: %w", taskID, err)
	}
	defer rows.Close()

	entries := []entry.ContextEntry{}
	for rows.Next() {
		var e entry.ContextEntry
		if err := scanEntry(rows, &e); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
