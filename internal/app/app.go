package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"google.golang.org/api/option"

	"pricinglab/internal/config"
	apperrors "pricinglab/internal/errors"
	"pricinglab/internal/exporter"
	"pricinglab/internal/infrastructure"
	"pricinglab/internal/middleware"
	"pricinglab/internal/services"
	handlers "pricinglab/internal/transport/http"
	"pricinglab/internal/uploads"
	ws "pricinglab/internal/websocket"
	"pricinglab/pkg/contracts"
)

// requestTimeoutMargin is added to the slowest backend deadline so the
// service reports its own timeout before the HTTP layer does.
const requestTimeoutMargin = 5 * time.Second

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics

	Store           *uploads.Store
	Janitor         *uploads.Janitor
	WebSocketHub    *ws.Hub
	AnalysisService *services.AnalysisService
	HealthService   *services.HealthService

	Router *chi.Mux
	Server *http.Server
}

// NewApplication wires every component from cfg. A nil cfg is loaded from
// the config file and environment.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	if !filepath.IsAbs(cfg.Logging.FilePath) {
		cfg.Logging.FilePath = paths.LogPath(filepath.Base(cfg.Logging.FilePath))
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.String("git_commit", contracts.GitCommit))
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.NewOTelConfig(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
	}

	if err := app.initializeServices(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices builds the store, hub, exporters and services. Uploads
// left on disk by a previous run are restored.
func (a *Application) initializeServices(ctx context.Context) error {
	store, err := uploads.NewStore(uploads.Options{
		Dir:               a.Paths.UploadsDir,
		AllowedExtensions: a.Config.Uploads.AllowedExtensions,
		MaxBytes:          a.Config.Server.MaxUploadBytes,
		HistoryLimit:      a.Config.Uploads.HistoryLimit,
	}, a.Logger)
	if err != nil {
		return err
	}
	restored, err := store.Restore()
	if err != nil {
		a.Logger.Warn("Failed to restore uploads", slog.String("error", err.Error()))
	} else if restored > 0 {
		a.Logger.Info("Restored uploads", slog.Int("count", restored))
	}
	a.Store = store

	a.WebSocketHub = ws.NewHub(a.Logger, a.Metrics)

	analysis, err := services.NewAnalysisService(services.AnalysisOptions{
		Store:       store,
		Publisher:   a.WebSocketHub,
		Metrics:     a.Metrics,
		Tracer:      a.OTelProviders.Tracer,
		Logger:      a.Logger,
		PreviewRows: a.Config.Uploads.PreviewRows,
		Timeout:     a.Config.Server.AnalysisTimeout,
		Exporters:   a.buildExporters(ctx),
	})
	if err != nil {
		return err
	}
	a.AnalysisService = analysis

	a.Janitor = uploads.NewJanitor(store, a.Config.Uploads.Retention, a.Config.Uploads.CleanupSchedule, a.Logger, analysis.Expired)

	a.HealthService = services.NewHealthService(services.HealthDeps{
		Paths:   a.Paths,
		Uploads: store,
		Clients: a.WebSocketHub,
		Engines: analysis,
	}, a.Logger)

	return nil
}

// buildExporters returns the export backends this deployment supports. PDF
// and Sheets failures only disable their format.
func (a *Application) buildExporters(ctx context.Context) services.Exporters {
	ex := services.Exporters{
		CSV:  exporter.NewCSVWriter(a.Paths, a.Logger),
		XLSX: exporter.NewXLSXWriter(a.Logger),
	}

	if a.Config.Export.PDFEnabled {
		ex.PDF = exporter.NewPDFRenderer(exporter.NewReportRenderer(""), a.Config.Export.ChromeTimeout, a.Logger)
		if !ex.PDF.Available() {
			a.Logger.Warn("PDF export enabled but no Chrome binary was found")
		}
	}

	if a.Config.Export.SheetsEnabled() {
		publisher, err := exporter.NewSheetsPublisher(ctx, a.Config.Export.SheetsSpreadsheetID, a.Logger,
			option.WithCredentialsFile(a.Config.Export.SheetsCredentialsFile))
		if err != nil {
			a.Logger.Warn("Google Sheets export disabled",
				slog.String("error", err.Error()))
		} else {
			ex.Sheets = publisher
		}
	}

	return ex
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	errorHandler := apperrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

	var metricsHandler http.Handler
	if a.Config.Telemetry.MetricsEnabled {
		metricsHandler = handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP)
	}

	a.Router = handlers.NewRouter(handlers.RouterConfig{
		Logger:          a.Logger,
		ErrorHandler:    errorHandler,
		Analysis:        a.AnalysisService,
		Health:          a.HealthService,
		WebSocket:       ws.NewHandler(a.WebSocketHub, a.Config.WebSocket, a.Config.Security.AllowedOrigins, a.Logger),
		Metrics:         metricsHandler,
		Providers:       a.OTelProviders,
		BusinessMetrics: a.Metrics,
		CORS:            a.corsConfig(),
		RateLimit:       a.Config.Security.RateLimit.Enabled,
		RateLimitRPS:    a.Config.Security.RateLimit.RPS,
		RateLimitBurst:  a.Config.Security.RateLimit.Burst,
		RequestTimeout:  a.requestTimeout(),
		MaxUploadBytes:  a.Config.Server.MaxUploadBytes,
		DevMode:         a.isDevelopmentMode(),
	})
}

// requestTimeout covers the slower of an analysis and a PDF render.
func (a *Application) requestTimeout() time.Duration {
	slowest := a.Config.Server.AnalysisTimeout
	if a.Config.Export.PDFEnabled && a.Config.Export.ChromeTimeout > slowest {
		slowest = a.Config.Export.ChromeTimeout
	}
	return slowest + requestTimeoutMargin
}

// corsConfig allows the configured origins, plus local dev servers in
// development mode. With CORS disabled no origins are listed and the
// router skips the middleware.
func (a *Application) corsConfig() middleware.CORSConfig {
	cfg := middleware.CORSConfig{Logger: a.Logger}
	if !a.Config.Security.EnableCORS {
		return cfg
	}

	cfg.AllowedOrigins = append(cfg.AllowedOrigins, a.Config.Security.AllowedOrigins...)
	if a.isDevelopmentMode() {
		cfg.AllowedOrigins = append(cfg.AllowedOrigins,
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		)
	}
	a.Logger.Info("CORS configured", slog.Any("allowed_origins", cfg.AllowedOrigins))
	return cfg
}

// isDevelopmentMode detects if we're running in development mode
func (a *Application) isDevelopmentMode() bool {
	if a.Config.Logging.Development {
		return true
	}
	return strings.EqualFold(os.Getenv("GO_ENV"), "development")
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the hub, the janitor and the HTTP server. A server failure
// calls cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	a.WebSocketHub.Start()
	if err := a.Janitor.Start(); err != nil {
		return fmt.Errorf("failed to start upload janitor: %w", err)
	}

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.Janitor.Stop(shutdownCtx)
	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}
	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, fmt.Errorf("close log file: %w", err))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info("Received shutdown signal")

	return a.Stop(context.WithoutCancel(ctx))
}

// performStartupHealthCheck logs every dependency the readiness probe
// reports as not ready.
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	status := a.HealthService.ReadinessCheck(ctx)
	if status.Status == "ready" {
		a.Logger.InfoContext(ctx, "Startup health check passed")
		return nil
	}

	var warnings []string
	for name, sh := range status.Services {
		if sh.Status != "ready" {
			warnings = append(warnings, fmt.Sprintf("%s: %s", name, sh.Message))
		}
	}
	return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
}
