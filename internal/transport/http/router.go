package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "pricinglab/internal/errors"
	"pricinglab/internal/infrastructure"
	"pricinglab/internal/middleware"
)

// RouterConfig collects everything the router mounts.
type RouterConfig struct {
	Logger       *slog.Logger
	ErrorHandler *apperrors.ErrorHandler

	Analysis AnalysisServiceInterface
	Health   HealthServiceInterface

	// WebSocket is mounted at /ws when set.
	WebSocket http.Handler
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	Providers       *infrastructure.OTelProviders
	BusinessMetrics *infrastructure.BusinessMetrics

	// CORS is skipped when no origins are allowed.
	CORS           middleware.CORSConfig
	RateLimit      bool
	RateLimitRPS   float64
	RateLimitBurst int

	RequestTimeout time.Duration
	MaxUploadBytes int64
	DevMode        bool
}

// NewRouter builds the HTTP surface. Middleware runs in the order
// RequestID, RealIP, OTel, StructuredLogger, Recoverer, SecurityHeaders,
// CORS, RateLimiter; /api routes add the JSON content type and a timeout.
func NewRouter(cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	errorHandler := cfg.ErrorHandler
	if errorHandler == nil {
		errorHandler = apperrors.NewErrorHandler(logger, false)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if cfg.Providers != nil && cfg.BusinessMetrics != nil {
		otelMiddleware, err := middleware.NewOTelMiddleware(cfg.Providers, cfg.BusinessMetrics)
		if err != nil {
			logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}
	}
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(errorHandler))

	r.Use(middleware.SecurityHeaders(cfg.DevMode))

	if len(cfg.CORS.AllowedOrigins) > 0 {
		if cfg.CORS.Logger == nil {
			cfg.CORS.Logger = logger
		}
		r.Use(middleware.CORS(cfg.CORS))
	}
	if cfg.RateLimit {
		r.Use(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger).Handler)
	}

	// Set before any Mount so sub-routers inherit them.
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	if cfg.WebSocket != nil {
		r.With(middleware.WebSocketTraceMiddleware(logger)).Handle("/ws", cfg.WebSocket)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.JSONContentType)
		r.Use(middleware.StripSlashes)
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout, logger))
		}

		if cfg.Health != nil {
			health := NewHealthHandler(cfg.Health, logger)
			r.Mount("/health", health.Routes())
			r.Get("/version", health.Version)
		}
		if cfg.Analysis != nil {
			uploads := NewUploadHandler(cfg.Analysis, cfg.MaxUploadBytes, logger, errorHandler)
			r.Mount("/uploads", uploads.Routes())
			r.Method(http.MethodGet, "/dashboard", NewDashboardHandler(cfg.Analysis, errorHandler))
		}
	})

	return r
}
