package infrastructure

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricinglab/internal/config"
	apperrors "pricinglab/internal/errors"
	"pricinglab/internal/shared/testutil"
)

func testOTelConfig(exporter string, metrics bool) *OTelConfig {
	return &OTelConfig{
		ServiceName:    "pricinglab-test",
		ServiceVersion: "test",
		Environment:    "test",
		TraceExporter:  exporter,
		EnableMetrics:  metrics,
		SampleRatio:    1.0,
	}
}

func TestOTelInitialization(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	providers, err := InitializeOTel(nil, logger)
	require.NoError(t, err)
	require.NotNil(t, providers)

	// Default telemetry exports no traces but keeps metrics on
	assert.Nil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelConfiguration(t *testing.T) {
	tests := []struct {
		name          string
		config        *OTelConfig
		expectErr     bool
		expectTracing bool
		expectMetrics bool
	}{
		{"all disabled", testOTelConfig("none", false), false, false, false},
		{"stdout traces", testOTelConfig("stdout", false), false, true, false},
		{"metrics only", testOTelConfig("", true), false, false, true},
		{"unsupported exporter", testOTelConfig("jaeger", false), true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			providers, err := InitializeOTel(tt.config, logger)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer providers.Shutdown(context.Background())

			assert.Equal(t, tt.expectTracing, providers.TracerProvider != nil)
			assert.Equal(t, tt.expectMetrics, providers.MeterProvider != nil)
			assert.Equal(t, tt.expectMetrics, providers.PrometheusHTTP != nil)
			assert.NotNil(t, providers.Tracer)
			assert.NotNil(t, providers.Meter)
		})
	}
}

func TestNewOTelConfig(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")
	cfg := NewOTelConfig(config.TelemetryConfig{
		ServiceName:    "svc",
		TraceExporter:  "stdout",
		MetricsEnabled: true,
	})

	assert.Equal(t, "svc", cfg.ServiceName)
	assert.Equal(t, "stdout", cfg.TraceExporter)
	assert.True(t, cfg.EnableMetrics)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 1.0, cfg.SampleRatio)

	t.Setenv(EnvironmentVariable, "staging")
	assert.Equal(t, "staging", NewOTelConfig(config.TelemetryConfig{}).Environment)
}

func TestTraceCorrelation(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	providers, err := InitializeOTel(testOTelConfig("stdout", false), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := providers.Tracer.Start(context.Background(), "test-operation")
	defer span.End()

	traceID := TraceIDFromContext(ctx)
	assert.NotEmpty(t, traceID)
	assert.Equal(t, span.SpanContext().TraceID().String(), traceID)
	assert.True(t, span.IsRecording())

	RecordError(ctx, assert.AnError)
	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestBusinessMetrics(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	providers, err := InitializeOTel(testOTelConfig("none", true), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	ctx := context.Background()
	metrics.RecordAnalysis(ctx, "maxdiff", 12, 150*time.Millisecond, nil)
	metrics.RecordAnalysis(ctx, "moca", 2, 10*time.Millisecond, apperrors.NewInsufficientDataError(2, 3))
	metrics.RecordFallback(ctx, "moca", "indeterminate_zone")
	metrics.RecordUpload(ctx, "comstrat", 2048)
	metrics.RecordExport(ctx, "csv", nil)
	metrics.RecordExport(ctx, "pdf", errors.New("chrome missing"))

	server := httptest.NewServer(providers.PrometheusHTTP)
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "analysis_runs_total")
	assert.Contains(t, text, "INSUFFICIENT_DATA")
	assert.Contains(t, text, "uploads_total")
	assert.Contains(t, text, "exports_total")
}

func TestNilBusinessMetricsIsNoop(t *testing.T) {
	var metrics *BusinessMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		metrics.RecordAnalysis(ctx, "maxdiff", 1, time.Second, nil)
		metrics.RecordFallback(ctx, "comstrat", "placeholder_chart")
		metrics.RecordUpload(ctx, "moca", 1)
		metrics.RecordExport(ctx, "xlsx", nil)
	})
}

func TestCollectStats(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	stats := CollectStats(start)

	assert.Positive(t, stats.GoRoutines)
	assert.Positive(t, stats.CPUCount)
	assert.GreaterOrEqual(t, stats.ProcessUptime, time.Minute)

	formatted := stats.FormatStats()
	assert.Contains(t, formatted, "heap_alloc_mb")
	assert.Contains(t, formatted, "uptime_seconds")
}
