package config

import "time"

// Application constants
const (
	AppName    = "pricinglab"
	AppVersion = "1.0.0"

	// Upload limits.
	DefaultMaxUploadBytes  = 16 << 20
	DefaultPreviewRows     = 5
	DefaultHistoryLimit    = 100
	DefaultUploadRetention = 7 * 24 * time.Hour
	DefaultCleanupSchedule = "@every 1h"

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// File Paths (relative to the base directory)
	DefaultDataDir    = "data"
	DefaultUploadsDir = "data/uploads"
	DefaultExportsDir = "data/exports"
	DefaultLogsDir    = "logs"

	DefaultLogLevel = "info"

	// API Endpoints
	APIBasePath       = "/api"
	HealthEndpoint    = "/api/health"
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws"
)
