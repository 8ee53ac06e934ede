package services

import "errors"

// Service errors
var (
	// ErrAnalysisTimeout wraps context.DeadlineExceeded when an engine
	// outlives the analysis timeout.
	ErrAnalysisTimeout = errors.New("analysis timed out")

	// ErrExportUnavailable marks formats this deployment cannot produce.
	ErrExportUnavailable = errors.New("export format unavailable")
)
