package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// Code classifies an APIError. ErrorHandler maps each code onto an RFC 7807
// problem type.
type Code string

const (
	CodeInvalidRequest       Code = "INVALID_REQUEST"
	CodeValidationFailed     Code = "VALIDATION_FAILED"
	CodeMissingParameter     Code = "MISSING_PARAMETER"
	CodeUnsupportedMediaType Code = "UNSUPPORTED_MEDIA_TYPE"
	CodePayloadTooLarge      Code = "PAYLOAD_TOO_LARGE"
	CodeRateLimited          Code = "RATE_LIMIT_EXCEEDED"
)

// APIError is a request-level failure raised by handlers and middleware,
// before any service is involved. Service failures are AppErrors.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  Code        `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %s (%v)", e.ErrorCode, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.Message)
}

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError names one rejected field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the Details payload of a multi-field rejection.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func New(status int, code Code, message string) *APIError {
	return &APIError{StatusCode: status, ErrorCode: code, Message: message}
}

func NewWithDetails(status int, code Code, message string, details interface{}) *APIError {
	return &APIError{StatusCode: status, ErrorCode: code, Message: message, Details: details}
}

// ErrPayloadTooLarge is returned for uploads and bodies past the configured cap.
var ErrPayloadTooLarge = New(http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
	"Uploaded file exceeds the maximum allowed size")

// InvalidRequestWithError wraps a body decoding failure.
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format", err.Error())
}

// ErrValidation rejects a single field.
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed",
		ValidationError{Field: field, Message: message})
}

// NewValidationErrors rejects several fields at once.
func NewValidationErrors(errs []ValidationError) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed",
		ValidationErrors{Errors: errs})
}
