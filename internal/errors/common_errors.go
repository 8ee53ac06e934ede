package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies an AppError. ErrorHandler maps each type to an HTTP
// status and problem type.
type ErrorType string

const (
	ErrTypeSchema           ErrorType = "SCHEMA"
	ErrTypeValidation       ErrorType = "VALIDATION"
	ErrTypeInsufficientData ErrorType = "INSUFFICIENT_DATA"
	ErrTypeConversion       ErrorType = "CONVERSION"
	ErrTypeDependency       ErrorType = "DEPENDENCY"
	ErrTypeParsing          ErrorType = "PARSING"
	ErrTypeStorage          ErrorType = "STORAGE"
	ErrTypeNotFound         ErrorType = "NOT_FOUND"
	ErrTypeConfig           ErrorType = "CONFIG"
)

// AppError is a failure raised below the transport layer: by ingest, the
// scoring engines, the upload store or the exporters. Context holds
// structured fields that 4xx problems expose to the caller.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext sets one context field and returns e.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{Type: errType, Message: message, Cause: cause, Context: map[string]interface{}{}}
}

// IsType reports whether err wraps an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	return errType != "" && TypeOf(err) == errType
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// NewSchemaError reports required columns absent from an input table.
// The missing names are kept under the "missing_columns" context key.
func NewSchemaError(missing []string) *AppError {
	cols := append([]string(nil), missing...)
	return NewAppError(ErrTypeSchema,
		fmt.Sprintf("missing required columns: %s", strings.Join(cols, ", ")), nil).
		WithContext("missing_columns", cols)
}

// NewAppValidationError rejects analysis input that is structurally
// present but unusable, such as a table with no rows.
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewInsufficientDataError reports fewer valid rows than an engine requires.
func NewInsufficientDataError(found, required int) *AppError {
	return NewAppError(ErrTypeInsufficientData,
		fmt.Sprintf("insufficient data: at least %d valid rows required, found %d", required, found), nil).
		WithContext("found", found).
		WithContext("required", required)
}

// NewConversionError reports a value or column that cannot be made numeric.
func NewConversionError(column string, cause error) *AppError {
	return NewAppError(ErrTypeConversion,
		fmt.Sprintf("column %q is not numeric and could not be converted", column), cause).
		WithContext("column", column)
}

// NewDependencyUnavailableError reports a numeric capability missing at startup.
func NewDependencyUnavailableError(capability string, cause error) *AppError {
	return NewAppError(ErrTypeDependency,
		fmt.Sprintf("%s capability is unavailable", capability), cause).
		WithContext("capability", capability)
}

// NewParsingError reports an upload that could not be read as a table.
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError reports an upload or export directory failure.
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewNotFoundError reports an unknown upload or a missing result.
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, resource+" not found", nil)
}

func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
