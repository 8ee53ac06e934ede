package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"pricinglab/internal/services"
)

// HealthServiceInterface is the part of *services.HealthService the probe
// routes use.
type HealthServiceInterface interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() services.VersionInfo
	SystemStats(ctx context.Context) services.SystemStats
}

// HealthHandler serves the probe, version and stats endpoints.
type HealthHandler struct {
	service HealthServiceInterface
	logger  *slog.Logger
}

func NewHealthHandler(service HealthServiceInterface, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{service: service, logger: logger.With(slog.String("handler", "health"))}
}

// Routes is mounted at /api/health.
func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.probe(h.service.HealthCheck))
	r.Get("/ready", h.ReadinessCheck)
	r.Get("/live", h.probe(h.service.LivenessCheck))
	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, h.service.SystemStats(r.Context()))
	})
	return r
}

func (h *HealthHandler) probe(check func(context.Context) services.HealthStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, check(r.Context()))
	}
}

// ReadinessCheck answers 503 unless every dependency is ready, so an
// orchestrator can act on the status code alone.
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status := h.service.ReadinessCheck(r.Context())
	if status.Status != "ready" {
		h.logger.DebugContext(r.Context(), "readiness probe failed", slog.Int("services", len(status.Services)))
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, status)
}

// Version serves GET /api/version.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Version())
}
