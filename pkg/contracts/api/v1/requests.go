// Package api contains the request and response contracts of the v1 HTTP API.
package api

import (
	"time"

	"pricinglab/pkg/contracts/domain"
)

// AnalyzeRequest runs an engine against a stored upload. AnalysisType
// defaults to the type chosen at upload time.
type AnalyzeRequest struct {
	AnalysisType domain.AnalysisType `json:"analysis_type,omitempty" validate:"omitempty,oneof=maxdiff comstrat moca"`
	PriceColumn  string              `json:"price_column,omitempty" validate:"omitempty,max=128"`
}

// ExportRequest selects a download format.
type ExportRequest struct {
	Format domain.ExportFormat `json:"format" query:"format" validate:"required,oneof=csv xlsx pdf sheets"`
}

// HistoryRequest pages through upload history.
type HistoryRequest struct {
	Limit  int                 `json:"limit" query:"limit" validate:"omitempty,min=1,max=500"`
	Status domain.UploadStatus `json:"status" query:"status" validate:"omitempty,oneof=uploaded previewed processed failed"`
}

// PreviewResponse shows the head of an uploaded table.
type PreviewResponse struct {
	UploadID        string                   `json:"upload_id"`
	Columns         []string                 `json:"columns"`
	Rows            []map[string]interface{} `json:"rows"`
	TotalRows       int                      `json:"total_rows"`
	RequiredColumns []string                 `json:"required_columns"`
	MissingColumns  []string                 `json:"missing_columns"`
}

// ExportOption describes one export format for an upload.
type ExportOption struct {
	Format      domain.ExportFormat `json:"format"`
	Label       string              `json:"label"`
	Available   bool                `json:"available"`
	Reason      string              `json:"reason,omitempty"`
	DownloadURL string              `json:"download_url,omitempty"`
}

// ExportOptionsResponse lists formats for an upload.
type ExportOptionsResponse struct {
	UploadID string         `json:"upload_id"`
	Options  []ExportOption `json:"options"`
}

// SheetsExportResponse is returned instead of a file for the sheets format.
type SheetsExportResponse struct {
	SpreadsheetID string   `json:"spreadsheet_id"`
	URL           string   `json:"url"`
	Sheets        []string `json:"sheets"`
}

// DashboardResponse summarizes activity for the landing page.
type DashboardResponse struct {
	Uploads      []domain.Upload                `json:"uploads"`
	ByStatus     map[domain.UploadStatus]int    `json:"by_status"`
	ByType       map[domain.AnalysisType]int    `json:"by_type"`
	Engines      map[domain.AnalysisType]string `json:"engines"`
	Clients      int                            `json:"websocket_clients"`
	GeneratedAt  time.Time                      `json:"generated_at"`
	ExportFormat []domain.ExportFormat          `json:"export_formats"`
}
