package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/agent0/runner/internal/domain/run"
)

const meterName = "agent0-runner"

// Metrics holds the runner's metric instruments. A nil *Metrics records
// nothing.
type Metrics struct {
	RunsStarted         metric.Int64Counter
	RunsCompleted       metric.Int64Counter
	ToolCalls           metric.Int64Counter
	PersistenceFailures metric.Int64Counter
	PreProcessing       metric.Float64Histogram
	FirstToken          metric.Float64Histogram
	Response            metric.Float64Histogram
}

// NewMetrics creates all metric instruments on mp. A nil mp uses the
// global meter provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.RunsStarted, err = meter.Int64Counter("runner.runs.started",
		metric.WithDescription("Number of runs started"))
	if err != nil {
		return nil, err
	}

	m.RunsCompleted, err = meter.Int64Counter("runner.runs.completed",
		metric.WithDescription("Number of runs concluded, by outcome"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("runner.toolcalls",
		metric.WithDescription("Number of MCP tool calls, by outcome"))
	if err != nil {
		return nil, err
	}

	m.PersistenceFailures, err = meter.Int64Counter("runner.runs.persistence_failures",
		metric.WithDescription("Number of run records that could not be written"))
	if err != nil {
		return nil, err
	}

	m.PreProcessing, err = meter.Float64Histogram("runner.run.preprocessing_ms",
		metric.WithDescription("Time from request to vendor call"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	m.FirstToken, err = meter.Float64Histogram("runner.run.first_token_ms",
		metric.WithDescription("Time from request to the first content event"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	m.Response, err = meter.Float64Histogram("runner.run.response_ms",
		metric.WithDescription("Time from request to run conclusion"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RunStarted counts a run entering the pipeline.
func (m *Metrics) RunStarted(ctx context.Context, stream, isTest bool) {
	if m == nil {
		return
	}
	m.RunsStarted.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("run.stream", stream),
		attribute.Bool("run.test", isTest),
	))
}

// RunRecorded counts a concluded run and records its latencies. A zero
// latency means the phase was never reached and is not recorded.
func (m *Metrics) RunRecorded(ctx context.Context, r *run.Run) {
	if m == nil {
		return
	}
	outcome := "ok"
	if r.Data.Error != nil {
		outcome = r.Data.Error.Name
	}
	attrs := metric.WithAttributes(
		attribute.String("run.outcome", outcome),
		attribute.Bool("run.test", r.IsTest),
	)
	m.RunsCompleted.Add(ctx, 1, attrs)

	mt := r.Data.Metrics
	if mt.PreProcessingTime > 0 {
		m.PreProcessing.Record(ctx, float64(mt.PreProcessingTime), attrs)
	}
	if mt.FirstTokenTime > 0 {
		m.FirstToken.Record(ctx, float64(mt.FirstTokenTime), attrs)
	}
	if mt.ResponseTime > 0 {
		m.Response.Record(ctx, float64(mt.ResponseTime), attrs)
	}
}

// ToolCalled counts one tool invocation.
func (m *Metrics) ToolCalled(ctx context.Context, tool string, failed bool) {
	if m == nil {
		return
	}
	m.ToolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool.name", tool),
		attribute.Bool("tool.error", failed),
	))
}

// PersistenceFailed counts a run record that could not be written.
func (m *Metrics) PersistenceFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.PersistenceFailures.Add(ctx, 1)
}
