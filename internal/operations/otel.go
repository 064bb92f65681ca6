package operations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	apperrors "filmdw/internal/errors"
	"filmdw/internal/infrastructure"
)

const (
	TracerName = "filmdw.operation"
)

// OperationTracer provides OpenTelemetry instrumentation for pipeline runs
type OperationTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.ETLMetrics
}

// NewOperationTracer creates a tracer over providers. Nil providers give a
// tracer whose spans and instruments do nothing.
func NewOperationTracer(providers *infrastructure.OTelProviders) *OperationTracer {
	if providers == nil || providers.Tracer == nil || providers.Metrics == nil {
		return &OperationTracer{
			tracer:  tracenoop.NewTracerProvider().Tracer(TracerName),
			metrics: NoopMetrics(),
		}
	}
	return &OperationTracer{tracer: providers.Tracer, metrics: providers.Metrics}
}

// NoopMetrics returns ETL instruments that record nothing
func NoopMetrics() *infrastructure.ETLMetrics {
	m, err := infrastructure.CreateETLMetrics(metricnoop.NewMeterProvider().Meter(TracerName))
	if err != nil {
		// the no-op meter never fails
		panic(fmt.Sprintf("noop metrics: %v", err))
	}
	return m
}

// Metrics returns the instruments steps record row counts on
func (pt *OperationTracer) Metrics() *infrastructure.ETLMetrics {
	return pt.metrics
}

// TraceOperationExecution creates a span for the entire pipeline run
func (pt *OperationTracer) TraceOperationExecution(ctx context.Context, operationID string) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "operation.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
		),
	)
}

// TraceStepExecution creates a span for an individual step
func (pt *OperationTracer) TraceStepExecution(ctx context.Context, operationID, stepID string) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, fmt.Sprintf("operation.step.%s", stepID),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("step.id", stepID),
		),
	)
}

// RecordStepCompletion ends the step span and records the step metrics
func (pt *OperationTracer) RecordStepCompletion(ctx context.Context, span trace.Span, stepID string, duration time.Duration, err error) {
	status := outcome(err)
	attrs := metric.WithAttributes(
		attribute.String("step", stepID),
		attribute.String("status", status),
	)
	pt.metrics.StepsTotal.Add(ctx, 1, attrs)
	pt.metrics.StepDuration.Record(ctx, duration.Seconds(), attrs)

	span.SetAttributes(
		attribute.String("step.status", status),
		attribute.Float64("step.duration_seconds", duration.Seconds()),
	)
	if err != nil {
		pt.recordError(trace.ContextWithSpan(ctx, span), err)
	} else {
		span.SetStatus(codes.Ok, "step completed")
	}
	span.End()
}

// RecordOperationCompletion ends the run span and records the run metrics
func (pt *OperationTracer) RecordOperationCompletion(ctx context.Context, span trace.Span, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("status", outcome(err)))
	pt.metrics.RunsTotal.Add(ctx, 1, attrs)
	pt.metrics.RunDuration.Record(ctx, duration.Seconds(), attrs)

	span.SetAttributes(attribute.Float64("operation.duration_seconds", duration.Seconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "operation completed")
	}
	span.End()
}

func (pt *OperationTracer) recordError(ctx context.Context, err error) {
	stage := apperrors.StageOf(err)
	errType := string(GetErrorType(err))
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		errType = string(appErr.Type)
	}

	pt.metrics.Errors.Add(ctx, 1, metric.WithAttributes(
		infrastructure.StageAttr(stage),
		attribute.String("type", errType),
	))
	infrastructure.RecordError(ctx, err)
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
