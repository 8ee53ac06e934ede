package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"pricinglab/internal/config"
	"pricinglab/internal/dataset"
	apperrors "pricinglab/internal/errors"
	"pricinglab/internal/exporter"
	"pricinglab/internal/scoring"
	"pricinglab/internal/shared/testutil"
	"pricinglab/internal/uploads"
	api "pricinglab/pkg/contracts/api/v1"
	"pricinglab/pkg/contracts/domain"
	"pricinglab/pkg/contracts/events"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, msgType events.MessageType, data interface{}) {
	m.Called(ctx, msgType, data)
}

func (m *mockPublisher) ClientCount() int {
	return m.Called().Int(0)
}

// published returns the payloads sent with msgType, in order.
func (m *mockPublisher) published(msgType events.MessageType) []interface{} {
	var out []interface{}
	for _, call := range m.Calls {
		if call.Method == "Publish" && call.Arguments.Get(1) == msgType {
			out = append(out, call.Arguments.Get(2))
		}
	}
	return out
}

// gatedRegressor passes the startup probe, then blocks until gate closes.
type gatedRegressor struct {
	calls atomic.Int32
	gate  chan struct{}
}

func (g *gatedRegressor) Fit(x, y []float64) (scoring.Line, error) {
	if g.calls.Add(1) > 1 {
		<-g.gate
	}
	return scoring.GonumRegressor{}.Fit(x, y)
}

// undefinedLineRegressor passes the startup probe, then fits NaN coefficients.
type undefinedLineRegressor struct {
	calls atomic.Int32
}

func (u *undefinedLineRegressor) Fit(x, y []float64) (scoring.Line, error) {
	if u.calls.Add(1) == 1 {
		return scoring.GonumRegressor{}.Fit(x, y)
	}
	return scoring.Line{Slope: math.NaN(), Intercept: math.NaN()}, nil
}

type brokenRegressor struct{}

func (brokenRegressor) Fit(x, y []float64) (scoring.Line, error) {
	return scoring.Line{}, errors.New("solver missing")
}

type testEnv struct {
	svc  *AnalysisService
	pub  *mockPublisher
	logs *testutil.LogCapture
}

func newTestEnv(t *testing.T, configure ...func(*AnalysisOptions)) *testEnv {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)

	store, err := uploads.NewStore(uploads.Options{
		Dir:               t.TempDir(),
		AllowedExtensions: []string{"xlsx", "xls", "csv"},
		MaxBytes:          1 << 20,
		HistoryLimit:      50,
	}, logger)
	require.NoError(t, err)

	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return()
	pub.On("ClientCount").Return(3).Maybe()

	opts := AnalysisOptions{
		Store:     store,
		Publisher: pub,
		Logger:    logger,
		Exporters: Exporters{
			CSV:  exporter.NewCSVWriter(&config.Paths{ExportsDir: t.TempDir()}, logger),
			XLSX: exporter.NewXLSXWriter(logger),
		},
	}
	for _, fn := range configure {
		fn(&opts)
	}
	svc, err := NewAnalysisService(opts)
	require.NoError(t, err)
	return &testEnv{svc: svc, pub: pub, logs: logs}
}

func (e *testEnv) upload(t *testing.T, name string, at domain.AnalysisType, content string) *domain.Upload {
	t.Helper()
	up, err := e.svc.Upload(context.Background(), name, at, strings.NewReader(content))
	require.NoError(t, err)
	return up
}

func TestNewAnalysisServiceRequiresStore(t *testing.T) {
	_, err := NewAnalysisService(AnalysisOptions{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestAnalysisWorkflow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	up := env.upload(t, "moca.csv", domain.AnalysisMoca, testutil.MocaCSV)
	created := env.pub.published(events.MessageTypeUploadCreated)
	require.Len(t, created, 1)
	assert.Equal(t, up.ID, created[0].(events.UploadEvent).UploadID)

	preview, err := env.svc.Preview(ctx, up.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"EntityName", "PriceMetric", "ValueMetric"}, preview.Columns)
	assert.Equal(t, 4, preview.TotalRows)
	assert.Len(t, preview.Rows, 4)
	assert.Equal(t, dataset.String("A"), preview.Rows[0]["EntityName"])
	assert.Empty(t, preview.MissingColumns)

	got, err := env.svc.Get(ctx, up.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadStatusPreviewed, got.Status)

	rec, err := env.svc.Run(ctx, up.ID, api.AnalyzeRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisMoca, rec.AnalysisType)
	assert.Equal(t, 4, rec.Rows)
	assert.False(t, rec.Cached)
	require.IsType(t, &scoring.MocaResult{}, rec.Result)
	assert.Len(t, rec.Result.Sheets(), 2)

	got, err = env.svc.Get(ctx, up.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadStatusProcessed, got.Status)

	completed := env.pub.published(events.MessageTypeAnalysisCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, 4, completed[0].(events.AnalysisEvent).Rows)

	stored, err := env.svc.Result(ctx, up.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.CompletedAt, stored.CompletedAt)

	t.Run("csv export", func(t *testing.T) {
		art, err := env.svc.Export(ctx, up.ID, api.ExportRequest{Format: domain.ExportCSV})
		require.NoError(t, err)
		assert.Equal(t, "moca_moca.csv", art.Filename)
		assert.Equal(t, domain.ExportCSV.ContentType(), art.ContentType)
		assert.True(t, bytes.HasPrefix(art.Data, []byte("\xEF\xBB\xBF")))
		assert.Contains(t, string(art.Data), "EntityName,PriceMetric,ValueMetric")
	})

	t.Run("xlsx export", func(t *testing.T) {
		art, err := env.svc.Export(ctx, up.ID, api.ExportRequest{Format: domain.ExportXLSX})
		require.NoError(t, err)
		assert.Equal(t, "moca_moca.xlsx", art.Filename)
		assert.True(t, bytes.HasPrefix(art.Data, []byte("PK")), "xlsx is a zip container")
	})

	t.Run("pdf disabled", func(t *testing.T) {
		_, err := env.svc.Export(ctx, up.ID, api.ExportRequest{Format: domain.ExportPDF})
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDependency))
		assert.ErrorIs(t, err, ErrExportUnavailable)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := env.svc.Export(ctx, up.ID, api.ExportRequest{Format: "docx"})
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	})

	exports := env.pub.published(events.MessageTypeExportCompleted)
	assert.Len(t, exports, 2)
}

func TestExportOptions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	up := env.upload(t, "survey.csv", domain.AnalysisMaxDiff, testutil.MaxDiffCSV)

	before, err := env.svc.ExportOptions(ctx, up.ID)
	require.NoError(t, err)
	require.Len(t, before.Options, 4)
	for _, opt := range before.Options {
		assert.False(t, opt.Available, opt.Format)
		assert.NotEmpty(t, opt.Reason, opt.Format)
	}

	_, err = env.svc.Run(ctx, up.ID, api.AnalyzeRequest{})
	require.NoError(t, err)

	after, err := env.svc.ExportOptions(ctx, up.ID)
	require.NoError(t, err)
	byFormat := make(map[domain.ExportFormat]api.ExportOption)
	for _, opt := range after.Options {
		byFormat[opt.Format] = opt
	}
	assert.True(t, byFormat[domain.ExportCSV].Available)
	assert.Equal(t, "/api/uploads/"+up.ID+"/export?format=csv", byFormat[domain.ExportCSV].DownloadURL)
	assert.True(t, byFormat[domain.ExportXLSX].Available)
	assert.False(t, byFormat[domain.ExportPDF].Available)
	assert.Equal(t, "pdf export is disabled", byFormat[domain.ExportPDF].Reason)
	assert.False(t, byFormat[domain.ExportSheets].Available)

	_, err = env.svc.ExportOptions(ctx, "missing")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestRunCachesResult(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	up := env.upload(t, "survey.csv", domain.AnalysisMaxDiff, testutil.MaxDiffCSV)

	first, err := env.svc.Run(ctx, up.ID, api.AnalyzeRequest{})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := env.svc.Run(ctx, up.ID, api.AnalyzeRequest{AnalysisType: domain.AnalysisMaxDiff})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.CompletedAt, second.CompletedAt)
	assert.Len(t, env.pub.published(events.MessageTypeAnalysisCompleted), 1)
}

func TestRunConcurrentRequestsShareComputation(t *testing.T) {
	env := newTestEnv(t)
	up := env.upload(t, "moca.csv", domain.AnalysisMoca, testutil.MocaCSV)

	const n = 8
	records := make([]*AnalysisRecord, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			rec, err := env.svc.Run(context.Background(), up.ID, api.AnalyzeRequest{})
			records[i] = rec
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, rec := range records {
		assert.Equal(t, records[0].CompletedAt, rec.CompletedAt)
	}
	assert.Len(t, env.pub.published(events.MessageTypeAnalysisCompleted), 1)
}

func TestRunComStratPriceColumn(t *testing.T) {
	env := newTestEnv(t)
	up := env.upload(t, "strategy.csv", domain.AnalysisMaxDiff, testutil.ComStratCSV)

	rec, err := env.svc.Run(context.Background(), up.ID, api.AnalyzeRequest{
		AnalysisType: domain.AnalysisComStrat,
		PriceColumn:  "  Cost ",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisComStrat, rec.Result.Analysis())
	assert.Equal(t, "Cost", rec.PriceColumn)

	// The price column is ignored by other engines.
	env2 := newTestEnv(t)
	up2 := env2.upload(t, "moca.csv", domain.AnalysisMoca, testutil.MocaCSV)
	rec2, err := env2.svc.Run(context.Background(), up2.ID, api.AnalyzeRequest{PriceColumn: "Cost"})
	require.NoError(t, err)
	assert.Empty(t, rec2.PriceColumn)
}

func TestRunFailureMarksUpload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	up := env.upload(t, "moca.csv", domain.AnalysisMaxDiff, testutil.MocaCSV)

	_, err := env.svc.Run(ctx, up.ID, api.AnalyzeRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))

	got, err := env.svc.Get(ctx, up.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadStatusFailed, got.Status)
	assert.NotEmpty(t, got.Error)

	failed := env.pub.published(events.MessageTypeAnalysisFailed)
	require.Len(t, failed, 1)
	ev := failed[0].(events.AnalysisEvent)
	assert.Equal(t, string(apperrors.ErrTypeSchema), ev.ErrorType)
	assert.NotEmpty(t, ev.Error)
	assert.True(t, env.logs.ContainsMessage("analysis failed"))

	_, err = env.svc.Result(ctx, up.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestFailedRerunClearsResult(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	up := env.upload(t, "moca.csv", domain.AnalysisMoca, testutil.MocaCSV)

	_, err := env.svc.Run(ctx, up.ID, api.AnalyzeRequest{})
	require.NoError(t, err)
	_, err = env.svc.Result(ctx, up.ID)
	require.NoError(t, err)

	_, err = env.svc.Run(ctx, up.ID, api.AnalyzeRequest{AnalysisType: domain.AnalysisMaxDiff})
	require.Error(t, err)

	got, err := env.svc.Get(ctx, up.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadStatusFailed, got.Status)

	_, err = env.svc.Result(ctx, up.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	_, err = env.svc.Export(ctx, up.ID, api.ExportRequest{Format: domain.ExportCSV})
	assert.Error(t, err)
}

func TestRunRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t)
	up := env.upload(t, "moca.csv", domain.AnalysisMoca, testutil.MocaCSV)

	tests := []struct {
		name    string
		id      string
		req     api.AnalyzeRequest
		errType apperrors.ErrorType
	}{
		{"unknown type", up.ID, api.AnalyzeRequest{AnalysisType: "conjoint"}, apperrors.ErrTypeValidation},
		{"long price column", up.ID, api.AnalyzeRequest{PriceColumn: strings.Repeat("x", 200)}, apperrors.ErrTypeValidation},
		{"unknown upload", "nope", api.AnalyzeRequest{}, apperrors.ErrTypeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Run(context.Background(), tt.id, tt.req)
			assert.True(t, apperrors.IsType(err, tt.errType), "got %v", err)
		})
	}
}

func TestRunTimeout(t *testing.T) {
	reg := &gatedRegressor{gate: make(chan struct{})}
	t.Cleanup(func() { close(reg.gate) })
	env := newTestEnv(t, func(o *AnalysisOptions) {
		o.Regressor = reg
		o.Timeout = 50 * time.Millisecond
	})
	up := env.upload(t, "moca.csv", domain.AnalysisMoca, testutil.MocaCSV)

	_, err := env.svc.Run(context.Background(), up.ID, api.AnalyzeRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAnalysisTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got, err := env.svc.Get(context.Background(), up.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadStatusFailed, got.Status)
}

func TestRunCallerCancellation(t *testing.T) {
	reg := &gatedRegressor{gate: make(chan struct{})}
	env := newTestEnv(t, func(o *AnalysisOptions) { o.Regressor = reg })
	up := env.upload(t, "moca.csv", domain.AnalysisMoca, testutil.MocaCSV)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := env.svc.Run(ctx, up.ID, api.AnalyzeRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The computation continues for other callers.
	close(reg.gate)
	assert.Eventually(t, func() bool {
		_, err := env.svc.Result(context.Background(), up.ID)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMocaEngineUnavailable(t *testing.T) {
	env := newTestEnv(t, func(o *AnalysisOptions) { o.Regressor = brokenRegressor{} })
	assert.True(t, env.logs.ContainsMessage("MOCA engine unavailable"))

	status := env.svc.EngineStatus()
	assert.Equal(t, "available", status[domain.AnalysisMaxDiff])
	assert.NotEqual(t, "available", status[domain.AnalysisMoca])

	up := env.upload(t, "moca.csv", domain.AnalysisMoca, testutil.MocaCSV)
	_, err := env.svc.Run(context.Background(), up.ID, api.AnalyzeRequest{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDependency))

	other := env.upload(t, "survey.csv", domain.AnalysisMaxDiff, testutil.MaxDiffCSV)
	_, err = env.svc.Run(context.Background(), other.ID, api.AnalyzeRequest{})
	assert.NoError(t, err)
}

func TestRunMocaIndeterminateWarns(t *testing.T) {
	env := newTestEnv(t, func(o *AnalysisOptions) { o.Regressor = &undefinedLineRegressor{} })
	up := env.upload(t, "moca.csv", domain.AnalysisMoca, testutil.MocaCSV)

	_, err := env.svc.Run(context.Background(), up.ID, api.AnalyzeRequest{})
	require.NoError(t, err)

	testutil.AssertLogContains(t, env.logs, slog.LevelWarn, "analysis fallback")
	testutil.AssertLogAttr(t, env.logs, "event", string(scoring.EventIndeterminate))
}

func TestDeleteAndExpire(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	up := env.upload(t, "moca.csv", domain.AnalysisMoca, testutil.MocaCSV)
	_, err := env.svc.Run(ctx, up.ID, api.AnalyzeRequest{})
	require.NoError(t, err)

	require.NoError(t, env.svc.Delete(ctx, up.ID))
	_, err = env.svc.Get(ctx, up.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
	assert.Len(t, env.pub.published(events.MessageTypeUploadDeleted), 1)
	assert.True(t, apperrors.IsType(env.svc.Delete(ctx, up.ID), apperrors.ErrTypeNotFound))

	other := env.upload(t, "moca.csv", domain.AnalysisMoca, testutil.MocaCSV)
	_, err = env.svc.Run(ctx, other.ID, api.AnalyzeRequest{})
	require.NoError(t, err)
	env.svc.Expired(*other)
	env.svc.mu.RLock()
	_, cached := env.svc.results[other.ID]
	env.svc.mu.RUnlock()
	assert.False(t, cached)
	expired := env.pub.published(events.MessageTypeUploadExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, other.ID, expired[0].(events.UploadEvent).UploadID)
}

func TestPreviewReportsMissingColumns(t *testing.T) {
	env := newTestEnv(t)
	up := env.upload(t, "moca.csv", domain.AnalysisComStrat, testutil.MocaCSV)

	preview, err := env.svc.Preview(context.Background(), up.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisComStrat.RequiredColumns(), preview.RequiredColumns)
	assert.Equal(t, domain.AnalysisComStrat.RequiredColumns(), preview.MissingColumns)
}

func TestPreviewUnreadableUpload(t *testing.T) {
	env := newTestEnv(t)
	up := env.upload(t, "empty.csv", domain.AnalysisMoca, "\n\n")

	_, err := env.svc.Preview(context.Background(), up.ID)
	require.Error(t, err)

	got, err := env.svc.Get(context.Background(), up.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadStatusFailed, got.Status)
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.upload(t, "survey.csv", domain.AnalysisMaxDiff, testutil.MaxDiffCSV)
	up := env.upload(t, "moca.csv", domain.AnalysisMoca, testutil.MocaCSV)
	_, err := env.svc.Run(ctx, up.ID, api.AnalyzeRequest{})
	require.NoError(t, err)

	dash, err := env.svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Len(t, dash.Uploads, 2)
	assert.Equal(t, up.ID, dash.Uploads[0].ID, "newest first")
	assert.Equal(t, 1, dash.ByStatus[domain.UploadStatusProcessed])
	assert.Equal(t, 1, dash.ByStatus[domain.UploadStatusUploaded])
	assert.Equal(t, 1, dash.ByType[domain.AnalysisMoca])
	assert.Equal(t, 3, dash.Clients)
	assert.Equal(t, []domain.ExportFormat{domain.ExportCSV, domain.ExportXLSX}, dash.ExportFormat)
	for _, at := range domain.AnalysisTypes {
		assert.Equal(t, "available", dash.Engines[at])
	}
}

func TestHistoryValidation(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "moca.csv", domain.AnalysisMoca, testutil.MocaCSV)

	list, err := env.svc.History(context.Background(), api.HistoryRequest{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = env.svc.History(context.Background(), api.HistoryRequest{Status: "archived"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestCacheKey(t *testing.T) {
	a := cacheKey("sum", domain.AnalysisComStrat, "Cost")
	assert.Len(t, a, 32)
	assert.Equal(t, a, cacheKey("sum", domain.AnalysisComStrat, "Cost"))
	assert.NotEqual(t, a, cacheKey("sum", domain.AnalysisComStrat, ""))
	assert.NotEqual(t, a, cacheKey("other", domain.AnalysisComStrat, "Cost"))
}

func TestExportStem(t *testing.T) {
	assert.Equal(t, "Q3_survey_maxdiff", exportStem("Q3 survey.xlsx", domain.AnalysisMaxDiff))
	assert.Equal(t, "result_moca", exportStem(".csv", domain.AnalysisMoca))
}
