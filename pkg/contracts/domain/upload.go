package domain

import (
	"time"
)

// UploadStatus tracks an upload through the workflow.
type UploadStatus string

const (
	UploadStatusUploaded  UploadStatus = "uploaded"
	UploadStatusPreviewed UploadStatus = "previewed"
	UploadStatusProcessed UploadStatus = "processed"
	UploadStatusFailed    UploadStatus = "failed"
)

// Upload is the record kept for every stored file.
type Upload struct {
	ID           string       `json:"id"`
	Filename     string       `json:"filename"`
	AnalysisType AnalysisType `json:"analysis_type"`
	Size         int64        `json:"size"`
	Checksum     string       `json:"checksum"`
	Status       UploadStatus `json:"status"`
	Error        string       `json:"error,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Age is the time since the upload was stored.
func (u Upload) Age(now time.Time) time.Duration {
	return now.Sub(u.CreatedAt)
}
