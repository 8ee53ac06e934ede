package services

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"pricinglab/internal/dataset"
	apperrors "pricinglab/internal/errors"
	"pricinglab/internal/infrastructure"
	"pricinglab/internal/ingest"
	"pricinglab/internal/scoring"
	"pricinglab/internal/uploads"
	api "pricinglab/pkg/contracts/api/v1"
	"pricinglab/pkg/contracts/domain"
	"pricinglab/pkg/contracts/events"
)

const defaultAnalysisTimeout = 2 * time.Minute

// EventPublisher pushes dashboard events. *websocket.Hub implements it.
type EventPublisher interface {
	Publish(ctx context.Context, msgType events.MessageType, data interface{})
}

// AnalysisOptions wires the service. Only Store is required.
type AnalysisOptions struct {
	Store       *uploads.Store
	Publisher   EventPublisher
	Metrics     *infrastructure.BusinessMetrics
	Tracer      trace.Tracer
	Logger      *slog.Logger
	PreviewRows int
	Timeout     time.Duration

	// Regressor backs the MOCA engine. Nil uses scoring.GonumRegressor.
	Regressor scoring.Regressor

	Exporters Exporters
}

// AnalysisRecord is the last successful run for an upload.
type AnalysisRecord struct {
	UploadID     string              `json:"upload_id"`
	AnalysisType domain.AnalysisType `json:"analysis_type"`
	PriceColumn  string              `json:"price_column,omitempty"`
	Rows         int                 `json:"rows"`
	DurationMS   float64             `json:"duration_ms"`
	CompletedAt  time.Time           `json:"completed_at"`
	Cached       bool                `json:"cached"`
	Result       scoring.Result      `json:"result"`

	key string
}

// AnalysisService runs the upload → preview → analyze → export workflow.
type AnalysisService struct {
	store       *uploads.Store
	publisher   EventPublisher
	metrics     *infrastructure.BusinessMetrics
	tracer      trace.Tracer
	logger      *slog.Logger
	validate    *validator.Validate
	previewRows int
	timeout     time.Duration
	exporters   Exporters

	moca    *scoring.MocaEngine
	mocaErr error

	group   singleflight.Group
	mu      sync.RWMutex
	results map[string]*AnalysisRecord
}

// NewAnalysisService creates the service. A MOCA engine that fails its
// startup probe leaves the other engines usable.
func NewAnalysisService(opts AnalysisOptions) (*AnalysisService, error) {
	if opts.Store == nil {
		return nil, apperrors.NewConfigError("analysis service requires an upload store", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer(infrastructure.InstrumentationName)
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultAnalysisTimeout
	}

	s := &AnalysisService{
		store:       opts.Store,
		publisher:   opts.Publisher,
		metrics:     opts.Metrics,
		tracer:      tracer,
		logger:      logger.With(slog.String("component", "analysis_service")),
		validate:    validator.New(),
		previewRows: opts.PreviewRows,
		timeout:     opts.Timeout,
		exporters:   opts.Exporters,
		results:     make(map[string]*AnalysisRecord),
	}
	regressor := opts.Regressor
	if regressor == nil {
		regressor = scoring.GonumRegressor{}
	}
	s.moca, s.mocaErr = scoring.NewMocaEngine(regressor)
	if s.mocaErr != nil {
		s.logger.Error("MOCA engine unavailable", slog.String("error", s.mocaErr.Error()))
	}
	return s, nil
}

// Upload stores a file and announces it.
func (s *AnalysisService) Upload(ctx context.Context, filename string, at domain.AnalysisType, r io.Reader) (*domain.Upload, error) {
	up, err := s.store.Save(ctx, filename, at, r)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordUpload(ctx, string(up.AnalysisType), up.Size)
	s.logger.InfoContext(ctx, "upload stored",
		slog.String("upload_id", up.ID),
		slog.String("filename", up.Filename),
		slog.String("analysis_type", string(up.AnalysisType)),
		slog.Int64("size", up.Size))
	s.publish(ctx, events.MessageTypeUploadCreated, events.UploadEvent{
		UploadID:     up.ID,
		Filename:     up.Filename,
		AnalysisType: string(up.AnalysisType),
		Size:         up.Size,
	})
	return up, nil
}

// Get returns one upload record.
func (s *AnalysisService) Get(ctx context.Context, id string) (*domain.Upload, error) {
	return s.store.Get(id)
}

// History lists uploads newest first.
func (s *AnalysisService) History(ctx context.Context, req api.HistoryRequest) ([]domain.Upload, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("invalid history request: %v", err))
	}
	return s.store.History(req.Limit, req.Status), nil
}

// Delete removes an upload with its cached result.
func (s *AnalysisService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.forget(id)
	s.logger.InfoContext(ctx, "upload deleted", slog.String("upload_id", id))
	s.publish(ctx, events.MessageTypeUploadDeleted, events.UploadEvent{UploadID: id})
	return nil
}

// Expired is the janitor callback for uploads removed by retention.
func (s *AnalysisService) Expired(up domain.Upload) {
	s.forget(up.ID)
	s.publish(context.Background(), events.MessageTypeUploadExpired, events.UploadEvent{
		UploadID: up.ID,
		Filename: up.Filename,
	})
}

// Preview loads an upload and returns its first rows plus a schema check
// against the upload's analysis type.
func (s *AnalysisService) Preview(ctx context.Context, id string) (*api.PreviewResponse, error) {
	up, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	tbl, err := s.load(ctx, up.ID)
	if err != nil {
		s.markFailed(ctx, up.ID, err)
		return nil, err
	}

	head := tbl.Head(s.previewRows)
	rows := make([]map[string]interface{}, 0, head.Len())
	for _, rec := range head.Records() {
		row := make(map[string]interface{}, len(rec))
		for k, v := range rec {
			row[k] = v
		}
		rows = append(rows, row)
	}

	required := up.AnalysisType.RequiredColumns()
	resp := &api.PreviewResponse{
		UploadID:        up.ID,
		Columns:         tbl.Columns(),
		Rows:            rows,
		TotalRows:       tbl.Len(),
		RequiredColumns: required,
		MissingColumns:  tbl.Missing(required...),
	}
	if resp.MissingColumns == nil {
		resp.MissingColumns = []string{}
	}

	if up.Status == domain.UploadStatusUploaded {
		if _, err := s.store.UpdateStatus(up.ID, domain.UploadStatusPreviewed, ""); err != nil {
			s.logger.WarnContext(ctx, "failed to mark upload previewed",
				slog.String("upload_id", up.ID),
				slog.String("error", err.Error()))
		}
	}
	return resp, nil
}

// Run analyzes an upload. Identical concurrent requests share one
// computation, and a repeat of the last request returns the stored result.
func (s *AnalysisService) Run(ctx context.Context, id string, req api.AnalyzeRequest) (*AnalysisRecord, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("invalid analyze request: %v", err))
	}
	up, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	at := req.AnalysisType
	if at == "" {
		at = up.AnalysisType
	}
	price := ""
	if at == domain.AnalysisComStrat {
		price = strings.TrimSpace(req.PriceColumn)
	}
	key := cacheKey(up.Checksum, at, price)

	if rec, ok := s.lookup(id, key); ok {
		rec.Cached = true
		s.logger.DebugContext(ctx, "analysis served from cache", slog.String("upload_id", id))
		return rec, nil
	}

	ch := s.group.DoChan(id+"/"+key, func() (interface{}, error) {
		// A flight that finished between lookup and DoChan already stored it.
		if rec, ok := s.lookup(id, key); ok {
			rec.Cached = true
			return rec, nil
		}
		return s.execute(context.WithoutCancel(ctx), up, at, price, key)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		rec := *res.Val.(*AnalysisRecord)
		if res.Shared {
			s.logger.DebugContext(ctx, "analysis shared with concurrent request", slog.String("upload_id", id))
		}
		return &rec, nil
	}
}

// Result returns the last successful run for an upload. A later failed
// run clears it.
func (s *AnalysisService) Result(ctx context.Context, id string) (*AnalysisRecord, error) {
	if _, err := s.store.Get(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	rec, ok := s.results[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError("analysis result for upload " + id)
	}
	out := *rec
	return &out, nil
}

func (s *AnalysisService) execute(ctx context.Context, up *domain.Upload, at domain.AnalysisType, price, key string) (*AnalysisRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ctx, span := s.tracer.Start(ctx, "analysis.run", trace.WithAttributes(
		attribute.String("upload.id", up.ID),
		attribute.String("analysis.type", string(at)),
	))
	defer span.End()

	start := time.Now()
	result, rows, err := s.compute(ctx, up.ID, at, price)
	duration := time.Since(start)
	s.metrics.RecordAnalysis(ctx, string(at), rows, duration, err)

	event := events.AnalysisEvent{
		UploadID:     up.ID,
		AnalysisType: string(at),
		Rows:         rows,
		DurationMS:   float64(duration.Microseconds()) / 1000,
	}
	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.forget(up.ID)
		s.markFailed(ctx, up.ID, err)
		s.logger.WarnContext(ctx, "analysis failed",
			slog.String("upload_id", up.ID),
			slog.String("analysis_type", string(at)),
			slog.String("error_type", string(apperrors.TypeOf(err))),
			slog.String("error", err.Error()))
		event.Error = err.Error()
		event.ErrorType = string(apperrors.TypeOf(err))
		s.publish(ctx, events.MessageTypeAnalysisFailed, event)
		return nil, err
	}

	if _, err := s.store.UpdateStatus(up.ID, domain.UploadStatusProcessed, ""); err != nil {
		// The upload was deleted while the engine ran.
		return nil, err
	}
	rec := &AnalysisRecord{
		UploadID:     up.ID,
		AnalysisType: at,
		PriceColumn:  price,
		Rows:         rows,
		DurationMS:   event.DurationMS,
		CompletedAt:  time.Now().UTC(),
		Result:       result,
		key:          key,
	}
	s.mu.Lock()
	s.results[up.ID] = rec
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("analysis.rows", rows))
	s.logger.InfoContext(ctx, "analysis completed",
		slog.String("upload_id", up.ID),
		slog.String("analysis_type", string(at)),
		slog.Int("rows", rows),
		slog.Duration("duration", duration))
	s.publish(ctx, events.MessageTypeAnalysisCompleted, event)
	return rec, nil
}

// compute loads the table and runs the engine, giving up when ctx ends.
func (s *AnalysisService) compute(ctx context.Context, id string, at domain.AnalysisType, price string) (scoring.Result, int, error) {
	tbl, err := s.load(ctx, id)
	if err != nil {
		return nil, 0, err
	}

	type outcome struct {
		result scoring.Result
		err    error
	}
	done := make(chan outcome, 1)
	obs := s.observer(ctx, id)
	go func() {
		r, err := s.dispatch(tbl, at, price, scoring.WithObserver(obs))
		done <- outcome{r, err}
	}()

	select {
	case <-ctx.Done():
		return nil, tbl.Len(), fmt.Errorf("%w after %s: %w", ErrAnalysisTimeout, s.timeout, ctx.Err())
	case o := <-done:
		return o.result, tbl.Len(), o.err
	}
}

func (s *AnalysisService) dispatch(tbl *dataset.Table, at domain.AnalysisType, price string, opts ...scoring.Option) (scoring.Result, error) {
	switch at {
	case domain.AnalysisMaxDiff:
		r, err := scoring.RunMaxDiff(tbl, opts...)
		if err != nil {
			return nil, err
		}
		return r, nil
	case domain.AnalysisComStrat:
		r, err := scoring.RunComStrat(tbl, price, opts...)
		if err != nil {
			return nil, err
		}
		return r, nil
	case domain.AnalysisMoca:
		if s.mocaErr != nil {
			return nil, s.mocaErr
		}
		r, err := s.moca.Run(tbl, opts...)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown analysis type %q", at))
	}
}

// observer logs degraded engine paths and counts them as fallbacks.
func (s *AnalysisService) observer(ctx context.Context, id string) scoring.Observer {
	return scoring.ObserverFunc(func(e scoring.Event) {
		s.metrics.RecordFallback(ctx, string(e.Engine), string(e.Kind))
		level := slog.LevelInfo
		if e.Kind == scoring.EventIndeterminate {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "analysis fallback",
			slog.String("upload_id", id),
			slog.String("analysis_type", string(e.Engine)),
			slog.String("event", string(e.Kind)),
			slog.String("detail", e.Detail),
			slog.Int("count", e.Count))
	})
}

func (s *AnalysisService) load(ctx context.Context, id string) (*dataset.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.store.Path(id)
	if err != nil {
		return nil, err
	}
	return ingest.ReadFile(path)
}

func (s *AnalysisService) lookup(id, key string) (*AnalysisRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.results[id]
	if !ok || rec.key != key {
		return nil, false
	}
	out := *rec
	return &out, true
}

func (s *AnalysisService) forget(id string) {
	s.mu.Lock()
	delete(s.results, id)
	s.mu.Unlock()
}

func (s *AnalysisService) markFailed(ctx context.Context, id string, cause error) {
	if _, err := s.store.UpdateStatus(id, domain.UploadStatusFailed, cause.Error()); err != nil {
		s.logger.WarnContext(ctx, "failed to mark upload failed",
			slog.String("upload_id", id),
			slog.String("error", err.Error()))
	}
}

func (s *AnalysisService) publish(ctx context.Context, msgType events.MessageType, data interface{}) {
	if s.publisher != nil {
		s.publisher.Publish(ctx, msgType, data)
	}
}

// EngineStatus reports "available" or the reason an engine cannot run.
func (s *AnalysisService) EngineStatus() map[domain.AnalysisType]string {
	out := make(map[domain.AnalysisType]string, len(domain.AnalysisTypes))
	for _, at := range domain.AnalysisTypes {
		out[at] = "available"
	}
	if s.mocaErr != nil {
		out[domain.AnalysisMoca] = s.mocaErr.Error()
	}
	return out
}

// cacheKey fingerprints the file content and the request.
func cacheKey(checksum string, at domain.AnalysisType, price string) string {
	sum := blake2b.Sum256([]byte(checksum + "\x00" + string(at) + "\x00" + price))
	return hex.EncodeToString(sum[:16])
}
