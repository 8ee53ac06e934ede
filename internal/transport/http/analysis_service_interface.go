package http

import (
	"context"
	"io"

	"pricinglab/internal/services"
	api "pricinglab/pkg/contracts/api/v1"
	"pricinglab/pkg/contracts/domain"
)

// AnalysisServiceInterface is the slice of *services.AnalysisService the
// upload routes depend on.
type AnalysisServiceInterface interface {
	Upload(ctx context.Context, filename string, at domain.AnalysisType, r io.Reader) (*domain.Upload, error)
	Get(ctx context.Context, id string) (*domain.Upload, error)
	History(ctx context.Context, req api.HistoryRequest) ([]domain.Upload, error)
	Delete(ctx context.Context, id string) error
	Preview(ctx context.Context, id string) (*api.PreviewResponse, error)
	Run(ctx context.Context, id string, req api.AnalyzeRequest) (*services.AnalysisRecord, error)
	Result(ctx context.Context, id string) (*services.AnalysisRecord, error)
	ExportOptions(ctx context.Context, id string) (*api.ExportOptionsResponse, error)
	Export(ctx context.Context, id string, req api.ExportRequest) (*services.ExportArtifact, error)
	Dashboard(ctx context.Context) (*api.DashboardResponse, error)
}

var _ AnalysisServiceInterface = (*services.AnalysisService)(nil)
