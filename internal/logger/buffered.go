package logger

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// defaultQueueSize is the record buffer capacity used by New.
const defaultQueueSize = 1024

// Closer flushes and stops a buffered handler.
type Closer interface {
	Close()
}

// nopCloser is a no-op Closer for synchronous mode.
type nopCloser struct{}

func (nopCloser) Close() {}

// queued pairs a record with the sink of the handler that enqueued it,
// so attrs and groups added via With survive the queue crossing.
type queued struct {
	sink slog.Handler
	rec  slog.Record
}

// Buffered decouples log emission from the caller by queuing records
// through a channel drained by a single goroutine. A full queue drops
// the record rather than blocking the hot path.
type Buffered struct {
	sink     slog.Handler
	queue    chan queued
	done     chan struct{}
	overflow *atomic.Int64
}

// NewBuffered wraps sink with a record queue of the given capacity.
func NewBuffered(sink slog.Handler, capacity int) *Buffered {
	b := &Buffered{
		sink:     sink,
		queue:    make(chan queued, capacity),
		done:     make(chan struct{}),
		overflow: &atomic.Int64{},
	}
	go b.run()
	return b
}

func (b *Buffered) run() {
	defer close(b.done)
	for q := range b.queue {
		_ = q.sink.Handle(context.Background(), q.rec)
	}
}

// Enabled delegates to the wrapped handler.
func (b *Buffered) Enabled(ctx context.Context, level slog.Level) bool {
	return b.sink.Enabled(ctx, level)
}

// Handle enqueues the record, dropping it if the queue is full.
func (b *Buffered) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case b.queue <- queued{sink: b.sink, rec: rec}:
	default:
		b.overflow.Add(1)
	}
	return nil
}

// WithAttrs returns a handler sharing the same queue but wrapping a new sink.
func (b *Buffered) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Buffered{
		sink:     b.sink.WithAttrs(attrs),
		queue:    b.queue,
		done:     b.done,
		overflow: b.overflow,
	}
}

// WithGroup returns a handler sharing the same queue but wrapping a new sink.
func (b *Buffered) WithGroup(name string) slog.Handler {
	return &Buffered{
		sink:     b.sink.WithGroup(name),
		queue:    b.queue,
		done:     b.done,
		overflow: b.overflow,
	}
}

// Overflow returns the number of records dropped due to a full queue.
func (b *Buffered) Overflow() int64 {
	return b.overflow.Load()
}

// Close stops accepting records and waits until the queue is drained.
func (b *Buffered) Close() {
	close(b.queue)
	<-b.done
}
