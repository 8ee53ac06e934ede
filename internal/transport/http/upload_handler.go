package http

import (
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	apperrors "pricinglab/internal/errors"
	"pricinglab/internal/middleware"
	api "pricinglab/pkg/contracts/api/v1"
	"pricinglab/pkg/contracts/domain"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temp file.
const multipartMemory = 8 << 20

var uploadStatuses = []string{
	string(domain.UploadStatusUploaded),
	string(domain.UploadStatusPreviewed),
	string(domain.UploadStatusProcessed),
	string(domain.UploadStatusFailed),
}

// UploadHandler serves the upload → preview → analyze → export workflow.
type UploadHandler struct {
	service        AnalysisServiceInterface
	logger         *slog.Logger
	errorHandler   *apperrors.ErrorHandler
	validator      *middleware.RequestValidator
	query          *middleware.QueryParamValidator
	maxUploadBytes int64
}

// NewUploadHandler creates an upload handler. maxUploadBytes caps the
// multipart body; zero disables the cap.
func NewUploadHandler(service AnalysisServiceInterface, maxUploadBytes int64, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *UploadHandler {
	return &UploadHandler{
		service:        service,
		logger:         logger.With(slog.String("component", "upload_handler")),
		errorHandler:   errorHandler,
		validator:      middleware.NewRequestValidator(logger, errorHandler),
		query:          middleware.NewQueryParamValidator(errorHandler),
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes returns the upload routes, mounted under /api/uploads.
func (h *UploadHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(apperrors.BodyLimit(h.maxUploadBytes)).Post("/", h.Create)
	r.Get("/", h.List)

	r.Route("/{id}", func(r chi.Router) {
		r.Use(h.UploadIDCtx)
		r.Get("/", h.Get)
		r.With(middleware.AuditLog(h.logger)).Delete("/", h.Delete)
		r.Get("/preview", h.Preview)
		r.With(middleware.ContentTypeValidator(h.errorHandler, "application/json")).Post("/analyze", h.Analyze)
		r.Get("/result", h.Result)
		r.Get("/export-options", h.ExportOptions)
		r.Get("/export", h.Export)
	})

	return r
}

// UploadIDCtx rejects ids that cannot have been issued by the store.
func (h *UploadHandler) UploadIDCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := uuid.Validate(chi.URLParam(r, "id")); err != nil {
			h.errorHandler.HandleError(w, r, apperrors.ErrValidation("id", "id must be a valid UUID"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Create handles POST /api/uploads
func (h *UploadHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if apperrors.IsPayloadTooLarge(err) {
			h.errorHandler.HandleError(w, r, apperrors.ErrPayloadTooLarge)
			return
		}
		h.errorHandler.HandleError(w, r, apperrors.InvalidRequestWithError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	at, err := domain.ParseAnalysisType(r.FormValue("analysis_type"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.ErrValidation("analysis_type", "analysis_type must be one of: maxdiff, comstrat, moca"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.ErrValidation("file", "file is required"))
		return
	}
	defer file.Close()

	up, err := h.service.Upload(ctx, header.Filename, at, file)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, up)
}

// List handles GET /api/uploads?limit=&status=
func (h *UploadHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, 500, 0)
	if !ok {
		return
	}
	status, ok := h.query.ValidateEnum(w, r, "status", uploadStatuses, "")
	if !ok {
		return
	}

	history, err := h.service.History(r.Context(), api.HistoryRequest{
		Limit:  limit,
		Status: domain.UploadStatus(status),
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"data":  history,
		"count": len(history),
	})
}

// Get handles GET /api/uploads/{id}
func (h *UploadHandler) Get(w http.ResponseWriter, r *http.Request) {
	up, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, up)
}

// Delete handles DELETE /api/uploads/{id}
func (h *UploadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Preview handles GET /api/uploads/{id}/preview
func (h *UploadHandler) Preview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.service.Preview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, preview)
}

// Analyze handles POST /api/uploads/{id}/analyze
func (h *UploadHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req api.AnalyzeRequest
	if !h.validator.DecodeJSON(w, r, &req) {
		return
	}

	rec, err := h.service.Run(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, rec)
}

// Result handles GET /api/uploads/{id}/result
func (h *UploadHandler) Result(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Result(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, rec)
}

// ExportOptions handles GET /api/uploads/{id}/export-options
func (h *UploadHandler) ExportOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.ExportOptions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, opts)
}

// Export handles GET /api/uploads/{id}/export?format=. Files are sent as
// attachments; the sheets format answers with the publication.
func (h *UploadHandler) Export(w http.ResponseWriter, r *http.Request) {
	req := api.ExportRequest{Format: domain.ExportFormat(r.URL.Query().Get("format"))}
	if !h.validator.Validate(w, r, req) {
		return
	}

	art, err := h.service.Export(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if art.Publication != nil {
		render.JSON(w, r, api.SheetsExportResponse{
			SpreadsheetID: art.Publication.SpreadsheetID,
			URL:           art.Publication.URL,
			Sheets:        art.Publication.Tabs,
		})
		return
	}

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(art.Data); err != nil {
		h.logger.WarnContext(r.Context(), "export download interrupted",
			slog.String("filename", art.Filename),
			slog.String("error", err.Error()))
	}
}

// DashboardHandler serves GET /api/dashboard.
type DashboardHandler struct {
	service      AnalysisServiceInterface
	errorHandler *apperrors.ErrorHandler
}

// NewDashboardHandler creates a dashboard handler.
func NewDashboardHandler(service AnalysisServiceInterface, errorHandler *apperrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{service: service, errorHandler: errorHandler}
}

// ServeHTTP implements http.Handler
func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}
