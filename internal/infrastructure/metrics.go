package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	apperrors "pricinglab/internal/errors"
)

// BusinessMetrics holds the application-specific instruments.
type BusinessMetrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Analysis metrics
	AnalysisRunsTotal metric.Int64Counter
	AnalysisDuration  metric.Float64Histogram
	AnalysisRows      metric.Int64Histogram
	AnalysisFallbacks metric.Int64Counter

	// Upload and export metrics
	UploadsTotal metric.Int64Counter
	UploadBytes  metric.Int64Counter
	ExportsTotal metric.Int64Counter

	WebSocketClients metric.Int64UpDownCounter
}

// CreateBusinessMetrics creates application-specific metrics
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	var m BusinessMetrics
	var err error

	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.AnalysisRunsTotal, err = meter.Int64Counter(
		"analysis_runs_total",
		metric.WithDescription("Analyses executed, by type and outcome"),
	); err != nil {
		return nil, err
	}
	if m.AnalysisDuration, err = meter.Float64Histogram(
		"analysis_duration_seconds",
		metric.WithDescription("Analysis duration in seconds, ingest included"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.AnalysisRows, err = meter.Int64Histogram(
		"analysis_input_rows",
		metric.WithDescription("Rows in the table handed to an engine"),
	); err != nil {
		return nil, err
	}
	if m.AnalysisFallbacks, err = meter.Int64Counter(
		"analysis_fallbacks_total",
		metric.WithDescription("Degraded-path events such as placeholder charts or indeterminate zones"),
	); err != nil {
		return nil, err
	}

	if m.UploadsTotal, err = meter.Int64Counter(
		"uploads_total",
		metric.WithDescription("Accepted uploads, by analysis type"),
	); err != nil {
		return nil, err
	}
	if m.UploadBytes, err = meter.Int64Counter(
		"upload_bytes_total",
		metric.WithDescription("Bytes stored from uploads"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if m.ExportsTotal, err = meter.Int64Counter(
		"exports_total",
		metric.WithDescription("Exports produced, by format and outcome"),
	); err != nil {
		return nil, err
	}
	if m.WebSocketClients, err = meter.Int64UpDownCounter(
		"websocket_clients",
		metric.WithDescription("Connected websocket clients"),
	); err != nil {
		return nil, err
	}

	return &m, nil
}

func outcome(err error) attribute.KeyValue {
	if err == nil {
		return attribute.String("status", "success")
	}
	kind := string(apperrors.TypeOf(err))
	if kind == "" {
		kind = "internal"
	}
	return attribute.String("status", kind)
}

// RecordAnalysis records one analysis run. A nil receiver is a no-op.
func (m *BusinessMetrics) RecordAnalysis(ctx context.Context, analysisType string, rows int, duration time.Duration, err error) {
	if m == nil {
		return
	}

	typeAttr := attribute.String("analysis.type", analysisType)
	m.AnalysisRunsTotal.Add(ctx, 1, metric.WithAttributes(typeAttr, outcome(err)))
	m.AnalysisDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(typeAttr))
	if rows > 0 {
		m.AnalysisRows.Record(ctx, int64(rows), metric.WithAttributes(typeAttr))
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent("analysis.metrics_recorded",
			trace.WithAttributes(
				typeAttr,
				attribute.Bool("success", err == nil),
				attribute.Float64("duration_seconds", duration.Seconds()),
			),
		)
	}
}

// RecordFallback counts a degraded-path event emitted by an engine.
func (m *BusinessMetrics) RecordFallback(ctx context.Context, analysisType, event string) {
	if m == nil {
		return
	}
	m.AnalysisFallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("analysis.type", analysisType),
		attribute.String("event", event),
	))
}

// RecordUpload records an accepted upload.
func (m *BusinessMetrics) RecordUpload(ctx context.Context, analysisType string, size int64) {
	if m == nil {
		return
	}
	m.UploadsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("analysis.type", analysisType)))
	m.UploadBytes.Add(ctx, size)
}

// RecordExport records an export attempt.
func (m *BusinessMetrics) RecordExport(ctx context.Context, format string, err error) {
	if m == nil {
		return
	}
	m.ExportsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format), outcome(err)))
}
