package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "agent0-runner"

// StartRunSpan starts a span for an agent run.
func StartRunSpan(ctx context.Context, runID, workspaceID, versionID string, isTest bool) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("workspace.id", workspaceID),
			attribute.String("version.id", versionID),
			attribute.Bool("run.test", isTest),
		),
	)
}

// StartStepSpan starts a span for one generation step of a run.
func StartStepSpan(ctx context.Context, step int, model string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "step",
		trace.WithAttributes(
			attribute.Int("step.index", step),
			attribute.String("gen_ai.request.model", model),
		),
	)
}

// StartToolCallSpan starts a span for a tool call within a run.
func StartToolCallSpan(ctx context.Context, callID, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("toolcall.id", callID),
			attribute.String("toolcall.tool", tool),
		),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
