package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "enginelever"

// Metrics holds all execution core metric instruments.
type Metrics struct {
	Executions        metric.Int64Counter
	ExecutionsFailed  metric.Int64Counter
	ToolCalls         metric.Int64Counter
	TasksRecovered    metric.Int64Counter
	ExecutionDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Executions, err = meter.Int64Counter("enginelever.executions",
		metric.WithDescription("Number of agent executions started"))
	if err != nil {
		return nil, err
	}

	m.ExecutionsFailed, err = meter.Int64Counter("enginelever.executions.failed",
		metric.WithDescription("Number of agent executions that failed"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("enginelever.toolcalls",
		metric.WithDescription("Number of tool invocations"))
	if err != nil {
		return nil, err
	}

	m.TasksRecovered, err = meter.Int64Counter("enginelever.tasks.recovered",
		metric.WithDescription("Number of tasks re-queued by the recovery sweep"))
	if err != nil {
		return nil, err
	}

	m.ExecutionDuration, err = meter.Float64Histogram("enginelever.execution.duration_seconds",
		metric.WithDescription("Agent execution duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
