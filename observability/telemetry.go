// Package observability wires OpenTelemetry tracing and metrics for the
// summarization pipeline.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/summaryhub/pkg/config"
)

// TelemetryProvider provides observability features
type TelemetryProvider struct {
	config        *config.TelemetryConfig
	tracer        trace.Tracer
	meter         metric.Meter
	traceProvider *sdktrace.TracerProvider

	// Metrics
	batchesStarted     metric.Int64Counter
	batchesCompleted   metric.Int64Counter
	batchesFailed      metric.Int64Counter
	batchesCancelled   metric.Int64Counter
	segmentsSummarized metric.Int64Counter
	llmCallDuration    metric.Float64Histogram
	activeBatches      metric.Int64UpDownCounter
}

// NewTelemetryProvider creates a new telemetry provider
func NewTelemetryProvider(cfg *config.TelemetryConfig) (*TelemetryProvider, error) {
	if cfg == nil {
		defaults := config.Default().Telemetry
		cfg = &defaults
	}

	tp := &TelemetryProvider{
		config: cfg,
	}

	if !cfg.Enabled {
		// Return no-op provider
		tp.tracer = otel.Tracer("summaryhub")
		tp.meter = otel.Meter("summaryhub")
		return tp, nil
	}

	if cfg.TracingEnabled {
		if err := tp.initTracing(); err != nil {
			return nil, fmt.Errorf("init tracing: %v", err)
		}
	}

	if cfg.MetricsEnabled {
		if err := tp.initMetrics(); err != nil {
			return nil, fmt.Errorf("init metrics: %v", err)
		}
	}

	return tp, nil
}

// initTracing initializes OpenTelemetry tracing
func (tp *TelemetryProvider) initTracing() error {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(tp.config.ServiceName),
			semconv.ServiceVersion(tp.config.ServiceVersion),
			semconv.DeploymentEnvironment(tp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("create resource: %v", err)
	}

	exporter, err := otlptrace.New(context.Background(),
		otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(tp.config.OTLPEndpoint),
			otlptracehttp.WithHeaders(tp.config.OTLPHeaders),
		),
	)
	if err != nil {
		return fmt.Errorf("create exporter: %v", err)
	}

	tp.traceProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(tp.config.SampleRate)),
	)

	otel.SetTracerProvider(tp.traceProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	tp.tracer = otel.Tracer("summaryhub",
		trace.WithInstrumentationVersion(tp.config.ServiceVersion),
		trace.WithSchemaURL(semconv.SchemaURL),
	)

	return nil
}

// initMetrics initializes OpenTelemetry metrics
func (tp *TelemetryProvider) initMetrics() error {
	tp.meter = otel.Meter("summaryhub",
		metric.WithInstrumentationVersion(tp.config.ServiceVersion),
		metric.WithSchemaURL(semconv.SchemaURL),
	)

	var err error

	tp.batchesStarted, err = tp.meter.Int64Counter(
		"summaryhub_batches_started_total",
		metric.WithDescription("Total number of summarization batches started"),
	)
	if err != nil {
		return fmt.Errorf("create batches_started counter: %v", err)
	}

	tp.batchesCompleted, err = tp.meter.Int64Counter(
		"summaryhub_batches_completed_total",
		metric.WithDescription("Total number of batches that reached Completed"),
	)
	if err != nil {
		return fmt.Errorf("create batches_completed counter: %v", err)
	}

	tp.batchesFailed, err = tp.meter.Int64Counter(
		"summaryhub_batches_failed_total",
		metric.WithDescription("Total number of batches that reached Failed"),
	)
	if err != nil {
		return fmt.Errorf("create batches_failed counter: %v", err)
	}

	tp.batchesCancelled, err = tp.meter.Int64Counter(
		"summaryhub_batches_cancelled_total",
		metric.WithDescription("Total number of batches that were cancelled"),
	)
	if err != nil {
		return fmt.Errorf("create batches_cancelled counter: %v", err)
	}

	tp.segmentsSummarized, err = tp.meter.Int64Counter(
		"summaryhub_segments_summarized_total",
		metric.WithDescription("Total number of segment summarization attempts"),
	)
	if err != nil {
		return fmt.Errorf("create segments_summarized counter: %v", err)
	}

	tp.llmCallDuration, err = tp.meter.Float64Histogram(
		"summaryhub_llm_call_duration_seconds",
		metric.WithDescription("Duration of outbound LLM summarization calls"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create llm_call_duration histogram: %v", err)
	}

	tp.activeBatches, err = tp.meter.Int64UpDownCounter(
		"summaryhub_active_batches",
		metric.WithDescription("Number of batches currently in a non-terminal state"),
	)
	if err != nil {
		return fmt.Errorf("create active_batches counter: %v", err)
	}

	return nil
}

// TraceOperation creates a new span for an operation
func (tp *TelemetryProvider) TraceOperation(ctx context.Context, operationName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	if tp.tracer == nil {
		// Return no-op span
		return ctx, trace.SpanFromContext(ctx)
	}

	return tp.tracer.Start(ctx, operationName,
		trace.WithAttributes(attributes...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// TraceBatch creates a span covering one batch run
func (tp *TelemetryProvider) TraceBatch(ctx context.Context, batchID, owner string, segments int) (context.Context, trace.Span) {
	attributes := []attribute.KeyValue{
		attribute.String("summaryhub.batch.id", batchID),
		attribute.String("summaryhub.batch.owner", owner),
		attribute.Int("summaryhub.batch.segments", segments),
	}

	return tp.TraceOperation(ctx, "summaryhub.batch", attributes...)
}

// TraceSegment creates a span for one segment summarization attempt
func (tp *TelemetryProvider) TraceSegment(ctx context.Context, batchID string, index, attempt int) (context.Context, trace.Span) {
	attributes := []attribute.KeyValue{
		attribute.String("summaryhub.batch.id", batchID),
		attribute.Int("summaryhub.segment.index", index),
		attribute.Int("summaryhub.segment.attempt", attempt),
	}

	return tp.TraceOperation(ctx, "summaryhub.segment", attributes...)
}

// RecordBatchStarted records a batch entering Processing
func (tp *TelemetryProvider) RecordBatchStarted(ctx context.Context, owner string) {
	if tp.batchesStarted != nil {
		tp.batchesStarted.Add(ctx, 1, metric.WithAttributes(
			attribute.String("owner", owner),
		))
	}
	if tp.activeBatches != nil {
		tp.activeBatches.Add(ctx, 1)
	}
}

// RecordBatchFinished records a batch reaching a terminal status
func (tp *TelemetryProvider) RecordBatchFinished(ctx context.Context, status string) {
	switch status {
	case "completed":
		if tp.batchesCompleted != nil {
			tp.batchesCompleted.Add(ctx, 1)
		}
	case "failed":
		if tp.batchesFailed != nil {
			tp.batchesFailed.Add(ctx, 1)
		}
	case "cancelled":
		if tp.batchesCancelled != nil {
			tp.batchesCancelled.Add(ctx, 1)
		}
	}
	if tp.activeBatches != nil {
		tp.activeBatches.Add(ctx, -1)
	}
}

// RecordSegmentCall records one outbound LLM call outcome
func (tp *TelemetryProvider) RecordSegmentCall(ctx context.Context, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}

	if tp.segmentsSummarized != nil {
		tp.segmentsSummarized.Add(ctx, 1, metric.WithAttributes(
			attribute.String("status", status),
		))
	}
	if tp.llmCallDuration != nil {
		tp.llmCallDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

// SetSpanError sets an error on the current span
func (tp *TelemetryProvider) SetSpanError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks the span as successful
func (tp *TelemetryProvider) SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// Shutdown gracefully shuts down the telemetry provider
func (tp *TelemetryProvider) Shutdown(ctx context.Context) error {
	if tp.traceProvider != nil {
		return tp.traceProvider.Shutdown(ctx)
	}
	return nil
}

// GetTracer returns the tracer instance
func (tp *TelemetryProvider) GetTracer() trace.Tracer {
	return tp.tracer
}

// GetMeter returns the meter instance
func (tp *TelemetryProvider) GetMeter() metric.Meter {
	return tp.meter
}
