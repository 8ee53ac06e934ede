// Package events contains the event contracts pushed to dashboard clients
// over the websocket.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MessageTypeUploadCreated     MessageType = "upload.created"
	MessageTypeUploadDeleted     MessageType = "upload.deleted"
	MessageTypeUploadExpired     MessageType = "upload.expired"
	MessageTypeAnalysisCompleted MessageType = "analysis.completed"
	MessageTypeAnalysisFailed    MessageType = "analysis.failed"
	MessageTypeExportCompleted   MessageType = "export.completed"

	// Connection messages
	MessageTypeConnect MessageType = "connect"
	MessageTypeError   MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// UploadEvent is the payload of upload.* messages.
type UploadEvent struct {
	UploadID     string `json:"upload_id"`
	Filename     string `json:"filename,omitempty"`
	AnalysisType string `json:"analysis_type,omitempty"`
	Size         int64  `json:"size,omitempty"`
}

// AnalysisEvent is the payload of analysis.* messages.
type AnalysisEvent struct {
	UploadID     string  `json:"upload_id"`
	AnalysisType string  `json:"analysis_type"`
	Rows         int     `json:"rows,omitempty"`
	DurationMS   float64 `json:"duration_ms"`
	Error        string  `json:"error,omitempty"`
	ErrorType    string  `json:"error_type,omitempty"`
}

// ExportEvent is the payload of export.completed.
type ExportEvent struct {
	UploadID string `json:"upload_id"`
	Format   string `json:"format"`
	Location string `json:"location,omitempty"`
}
