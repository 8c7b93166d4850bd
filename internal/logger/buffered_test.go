package logger

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// captureHandler collects slog.Records for test assertions.
type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
	delay   time.Duration // optional per-record processing delay
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.mu.Lock()
	h.records = append(h.records, rec)
	h.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &attrCapture{parent: h, attrs: attrs}
}
func (h *captureHandler) WithGroup(string) slog.Handler { return h }

// attrCapture bakes derived attrs into records before storing them, the
// way a real JSON handler would render them.
type attrCapture struct {
	parent *captureHandler
	attrs  []slog.Attr
}

func (h *attrCapture) Enabled(context.Context, slog.Level) bool { return true }

func (h *attrCapture) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	rec = rec.Clone()
	rec.AddAttrs(h.attrs...)
	return h.parent.Handle(ctx, rec)
}

func (h *attrCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &attrCapture{parent: h.parent, attrs: append(h.attrs, attrs...)}
}
func (h *attrCapture) WithGroup(string) slog.Handler { return h }

func (h *captureHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

func TestBuffered_BasicWrite(t *testing.T) {
	sink := &captureHandler{}
	b := NewBuffered(sink, 100)

	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0)
	if err := b.Handle(context.Background(), rec); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	b.Close()

	if got := sink.count(); got != 1 {
		t.Fatalf("expected 1 record, got %d", got)
	}
}

func TestBuffered_WithAttrsSurviveQueue(t *testing.T) {
	sink := &captureHandler{}
	b := NewBuffered(sink, 100)

	derived := b.WithAttrs([]slog.Attr{slog.String("service", "lever")})
	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "tagged", 0)
	if err := derived.Handle(context.Background(), rec); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	b.Close()

	if got := sink.count(); got != 1 {
		t.Fatalf("expected 1 record, got %d", got)
	}
	found := false
	sink.records[0].Attrs(func(a slog.Attr) bool {
		if a.Key == "service" && a.Value.String() == "lever" {
			found = true
		}
		return true
	})
	if !found {
		t.Fatal("expected the derived handler's attr on the drained record")
	}
}

func TestBuffered_ConcurrentWrites(t *testing.T) {
	const goroutines = 50
	const perGoroutine = 100
	total := goroutines * perGoroutine

	sink := &captureHandler{}
	b := NewBuffered(sink, total)

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				rec := slog.NewRecord(time.Now(), slog.LevelInfo, "concurrent", 0)
				_ = b.Handle(context.Background(), rec)
			}
		}()
	}
	wg.Wait()
	b.Close()

	if got := sink.count(); got != total {
		t.Fatalf("expected %d records, got %d", total, got)
	}
}

func TestBuffered_QueueFullDrops(t *testing.T) {
	// A slow sink with a tiny queue forces drops.
	sink := &captureHandler{delay: 10 * time.Millisecond}
	b := NewBuffered(sink, 1)

	for range 50 {
		rec := slog.NewRecord(time.Now(), slog.LevelInfo, "flood", 0)
		_ = b.Handle(context.Background(), rec)
	}

	b.Close()

	if b.Overflow() == 0 {
		t.Fatal("expected some records to be dropped, got 0")
	}
}

func TestBuffered_CloseFlushesRemaining(t *testing.T) {
	sink := &captureHandler{}
	b := NewBuffered(sink, 1000)

	const total = 200
	for range total {
		rec := slog.NewRecord(time.Now(), slog.LevelInfo, "flush-test", 0)
		_ = b.Handle(context.Background(), rec)
	}

	// Close blocks until every enqueued record is drained.
	b.Close()

	if got := sink.count(); got != total {
		t.Fatalf("expected %d records after close, got %d", total, got)
	}
}
