package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"pricinglab/internal/config"
	"pricinglab/internal/infrastructure"
	"pricinglab/pkg/contracts"
	"pricinglab/pkg/contracts/domain"
)

// UploadCounter is satisfied by *uploads.Store.
type UploadCounter interface {
	Count() int
}

// ClientCounter is satisfied by *websocket.Hub.
type ClientCounter interface {
	ClientCount() int
}

// EngineReporter is satisfied by *AnalysisService.
type EngineReporter interface {
	EngineStatus() map[domain.AnalysisType]string
}

// HealthDeps are the components reported on. Nil fields are reported as
// not ready.
type HealthDeps struct {
	Paths   *config.Paths
	Uploads UploadCounter
	Clients ClientCounter
	Engines EngineReporter
}

// HealthService provides health check functionality
type HealthService struct {
	deps      HealthDeps
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// SystemStats represents system statistics
type SystemStats struct {
	UptimeSeconds    float64                    `json:"uptime_seconds"`
	Uploads          int                        `json:"uploads"`
	UploadBytes      int64                      `json:"upload_bytes"`
	WebSocketClients int                        `json:"websocket_clients"`
	Runtime          infrastructure.SystemStats `json:"runtime"`
}

// NewHealthService creates a health service.
func NewHealthService(deps HealthDeps, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("HealthService initialized",
		slog.String("version", contracts.Version),
		slog.String("build_time", contracts.BuildTime),
		slog.String("git_commit", contracts.GitCommit))

	return &HealthService{
		deps:      deps,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   contracts.Version,
	}
}

// ReadinessCheck reports every dependency and is "ready" only when all of
// them are.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Services: map[string]ServiceHealth{
			"storage":   hs.checkStorageHealth(),
			"uploads":   hs.checkUploadsHealth(),
			"websocket": hs.checkWebSocketHealth(),
		},
	}
	for name, sh := range hs.checkEngineHealth() {
		status.Services["engine."+name] = sh
	}

	for name, sh := range status.Services {
		if sh.Status != "ready" {
			status.Status = "not_ready"
			hs.logger.WarnContext(ctx, "ReadinessCheck: dependency not ready",
				slog.String("service", name),
				slog.String("message", sh.Message))
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// VersionInfo is the build information plus process uptime.
type VersionInfo struct {
	contracts.VersionInfo
	StartTime     time.Time `json:"start_time"`
	UptimeSeconds float64   `json:"uptime_seconds"`
}

// Version returns version information
func (hs *HealthService) Version() VersionInfo {
	return VersionInfo{
		VersionInfo:   contracts.GetVersionInfo(),
		StartTime:     hs.startTime.UTC(),
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
	}
}

// SystemStats returns system statistics
func (hs *HealthService) SystemStats(ctx context.Context) SystemStats {
	stats := SystemStats{
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		Runtime:       infrastructure.CollectStats(hs.startTime),
	}
	if hs.deps.Uploads != nil {
		stats.Uploads = hs.deps.Uploads.Count()
	}
	if hs.deps.Clients != nil {
		stats.WebSocketClients = hs.deps.Clients.ClientCount()
	}
	if hs.deps.Paths != nil {
		filepath.Walk(hs.deps.Paths.UploadsDir, func(path string, info os.FileInfo, err error) error {
			if err == nil && !info.IsDir() {
				stats.UploadBytes += info.Size()
			}
			return nil
		})
	}
	return stats
}

// checkStorageHealth verifies the upload and export directories are writable.
func (hs *HealthService) checkStorageHealth() ServiceHealth {
	if hs.deps.Paths == nil {
		return ServiceHealth{Status: "not_ready", Message: "paths not configured"}
	}
	for _, dir := range []string{hs.deps.Paths.UploadsDir, hs.deps.Paths.ExportsDir} {
		if _, err := os.Stat(dir); err != nil {
			return ServiceHealth{
				Status:  "not_ready",
				Message: fmt.Sprintf("Directory not accessible: %s", dir),
			}
		}
		probe, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			return ServiceHealth{
				Status:  "not_ready",
				Message: fmt.Sprintf("Cannot write to %s: %v", dir, err),
			}
		}
		probe.Close()
		os.Remove(probe.Name())
	}
	return ServiceHealth{Status: "ready", Message: "Storage is writable"}
}

func (hs *HealthService) checkUploadsHealth() ServiceHealth {
	if hs.deps.Uploads == nil {
		return ServiceHealth{Status: "not_ready", Message: "upload store not initialized"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d uploads tracked", hs.deps.Uploads.Count()),
	}
}

// checkWebSocketHealth checks WebSocket service health
func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.deps.Clients == nil {
		return ServiceHealth{Status: "not_ready", Message: "websocket hub not initialized"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d clients connected", hs.deps.Clients.ClientCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}

func (hs *HealthService) checkEngineHealth() map[string]ServiceHealth {
	out := make(map[string]ServiceHealth, len(domain.AnalysisTypes))
	if hs.deps.Engines == nil {
		for _, at := range domain.AnalysisTypes {
			out[string(at)] = ServiceHealth{Status: "not_ready", Message: "analysis service not initialized"}
		}
		return out
	}
	for at, state := range hs.deps.Engines.EngineStatus() {
		if state == "available" {
			out[string(at)] = ServiceHealth{Status: "ready", Message: at.Title() + " engine available"}
			continue
		}
		out[string(at)] = ServiceHealth{Status: "not_ready", Message: state}
	}
	return out
}

// GetDetailedHealth returns comprehensive health information
func (hs *HealthService) GetDetailedHealth(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{
		"health":    hs.HealthCheck(ctx),
		"readiness": hs.ReadinessCheck(ctx),
		"liveness":  hs.LivenessCheck(ctx),
		"version":   hs.Version(),
		"stats":     hs.SystemStats(ctx),
	}
}
