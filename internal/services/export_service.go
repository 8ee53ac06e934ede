package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	apperrors "pricinglab/internal/errors"
	"pricinglab/internal/exporter"
	"pricinglab/internal/scoring"
	api "pricinglab/pkg/contracts/api/v1"
	"pricinglab/pkg/contracts/domain"
	"pricinglab/pkg/contracts/events"
)

// Exporters bundles the writers behind Export. PDF and Sheets are nil when
// the deployment does not provide them.
type Exporters struct {
	CSV    *exporter.CSVWriter
	XLSX   *exporter.XLSXWriter
	PDF    *exporter.PDFRenderer
	Sheets *exporter.SheetsPublisher
}

// ExportArtifact is either a downloadable document or, for the sheets
// format, a publication record.
type ExportArtifact struct {
	Filename    string
	ContentType string
	Data        []byte
	Publication *exporter.Publication
}

var exportLabels = map[domain.ExportFormat]string{
	domain.ExportCSV:    "CSV (primary table)",
	domain.ExportXLSX:   "Excel workbook",
	domain.ExportPDF:    "PDF report",
	domain.ExportSheets: "Google Sheets",
}

var exportFormats = []domain.ExportFormat{domain.ExportCSV, domain.ExportXLSX, domain.ExportPDF, domain.ExportSheets}

// Export renders the last result of an upload in the requested format.
func (s *AnalysisService) Export(ctx context.Context, id string, req api.ExportRequest) (*ExportArtifact, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("invalid export request: %v", err))
	}
	rec, err := s.Result(ctx, id)
	if err != nil {
		return nil, err
	}
	up, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	if reason := s.unavailable(req.Format); reason != "" {
		err := apperrors.NewDependencyUnavailableError(string(req.Format)+" export", fmt.Errorf("%w: %s", ErrExportUnavailable, reason))
		s.metrics.RecordExport(ctx, string(req.Format), err)
		return nil, err
	}

	art, err := s.render(ctx, up, rec.Result, req.Format)
	s.metrics.RecordExport(ctx, string(req.Format), err)
	if err != nil {
		s.logger.WarnContext(ctx, "export failed",
			slog.String("upload_id", id),
			slog.String("format", string(req.Format)),
			slog.String("error", err.Error()))
		return nil, err
	}

	location := art.Filename
	if art.Publication != nil {
		location = art.Publication.URL
	}
	s.logger.InfoContext(ctx, "export completed",
		slog.String("upload_id", id),
		slog.String("format", string(req.Format)),
		slog.Int("bytes", len(art.Data)))
	s.publish(ctx, events.MessageTypeExportCompleted, events.ExportEvent{
		UploadID: id,
		Format:   string(req.Format),
		Location: location,
	})
	return art, nil
}

func (s *AnalysisService) render(ctx context.Context, up *domain.Upload, r scoring.Result, format domain.ExportFormat) (*ExportArtifact, error) {
	stem := exportStem(up.Filename, r.Analysis())
	art := &ExportArtifact{
		Filename:    stem + "." + string(format),
		ContentType: format.ContentType(),
	}
	var buf bytes.Buffer

	switch format {
	case domain.ExportCSV:
		sheets := r.Sheets()
		if len(sheets) == 0 {
			return nil, apperrors.NewNotFoundError("result table")
		}
		if err := s.exporters.CSV.WriteTable(&buf, sheets[0].Table); err != nil {
			return nil, err
		}
	case domain.ExportXLSX:
		if err := s.exporters.XLSX.Write(&buf, r); err != nil {
			return nil, err
		}
	case domain.ExportPDF:
		data, err := s.exporters.PDF.Render(ctx, r, exporter.ReportMeta{
			Source:      up.Filename,
			GeneratedAt: time.Now(),
		})
		if err != nil {
			return nil, err
		}
		art.Data = data
		return art, nil
	case domain.ExportSheets:
		pub, err := s.exporters.Sheets.Publish(ctx, r, r.Analysis().Title())
		if err != nil {
			return nil, err
		}
		art.Filename = ""
		art.Publication = pub
		return art, nil
	default:
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown export format %q", format))
	}

	art.Data = buf.Bytes()
	return art, nil
}

// unavailable returns why format cannot be produced, or "".
func (s *AnalysisService) unavailable(format domain.ExportFormat) string {
	switch format {
	case domain.ExportCSV:
		if s.exporters.CSV == nil {
			return "csv writer not configured"
		}
	case domain.ExportXLSX:
		if s.exporters.XLSX == nil {
			return "xlsx writer not configured"
		}
	case domain.ExportPDF:
		if s.exporters.PDF == nil {
			return "pdf export is disabled"
		}
		if !s.exporters.PDF.Available() {
			return "no chrome or chromium binary found"
		}
	case domain.ExportSheets:
		if s.exporters.Sheets == nil {
			return "google sheets export is not configured"
		}
	}
	return ""
}

// ExportOptions lists every format with its availability for an upload.
// Formats are only downloadable once the upload has a result.
func (s *AnalysisService) ExportOptions(ctx context.Context, id string) (*api.ExportOptionsResponse, error) {
	if _, err := s.store.Get(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	_, hasResult := s.results[id]
	s.mu.RUnlock()

	resp := &api.ExportOptionsResponse{UploadID: id, Options: make([]api.ExportOption, 0, len(exportFormats))}
	for _, f := range exportFormats {
		opt := api.ExportOption{Format: f, Label: exportLabels[f]}
		switch reason := s.unavailable(f); {
		case reason != "":
			opt.Reason = reason
		case !hasResult:
			opt.Reason = "run an analysis first"
		default:
			opt.Available = true
			opt.DownloadURL = fmt.Sprintf("/api/uploads/%s/export?format=%s", id, f)
		}
		resp.Options = append(resp.Options, opt)
	}
	return resp, nil
}

// Dashboard summarizes uploads, engines and connected clients.
func (s *AnalysisService) Dashboard(ctx context.Context) (*api.DashboardResponse, error) {
	history := s.store.History(0, "")
	resp := &api.DashboardResponse{
		Uploads:     history,
		ByStatus:    make(map[domain.UploadStatus]int),
		ByType:      make(map[domain.AnalysisType]int),
		Engines:     s.EngineStatus(),
		GeneratedAt: time.Now().UTC(),
	}
	for _, up := range history {
		resp.ByStatus[up.Status]++
		resp.ByType[up.AnalysisType]++
	}
	if counter, ok := s.publisher.(interface{ ClientCount() int }); ok {
		resp.Clients = counter.ClientCount()
	}
	for _, f := range exportFormats {
		if s.unavailable(f) == "" {
			resp.ExportFormat = append(resp.ExportFormat, f)
		}
	}
	return resp, nil
}

// exportStem derives a download name such as "survey_moca".
func exportStem(filename string, at domain.AnalysisType) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		base = "result"
	}
	return base + "_" + string(at)
}
