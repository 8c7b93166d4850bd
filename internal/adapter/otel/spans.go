package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "enginelever"

// StartExecutionSpan starts a span for an agent execution on a task.
func StartExecutionSpan(ctx context.Context, taskID, agentID, operation string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "execution",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("agent.id", agentID),
			attribute.String("execution.operation", operation),
		),
	)
}

// StartToolCallSpan starts a span for a tool call within an execution.
func StartToolCallSpan(ctx context.Context, tool string, iteration int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("toolcall.tool", tool),
			attribute.Int("toolcall.iteration", iteration),
		),
	)
}

// StartRecoverySpan starts a span for a recovery sweep.
func StartRecoverySpan(ctx context.Context) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "recovery.sweep")
}
