package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Problem types for request and transport failures.
const (
	TypeValidation           = "/errors/validation"
	TypeNotFound             = "/errors/not-found"
	TypeRateLimit            = "/errors/rate-limit"
	TypeInternal             = "/errors/internal"
	TypeTimeout              = "/errors/timeout"
	TypePayloadTooLarge      = "/errors/payload-too-large"
	TypeUnsupportedMediaType = "/errors/unsupported-media-type"
)

// Problem types for analysis and data failures.
const (
	TypeAnalysisSchema     = "/errors/analysis/schema"
	TypeAnalysisValidation = "/errors/analysis/validation"
	TypeInsufficientData   = "/errors/analysis/insufficient-data"
	TypeConversion         = "/errors/analysis/conversion"
	TypeDependency         = "/errors/analysis/dependency-unavailable"
	TypeDataParsing        = "/errors/data/parsing"
	TypeStorage            = "/errors/data/storage"
)

type problemSpec struct {
	status int
	typ    string
	title  string
}

// appProblems maps AppError types onto problems. Shape errors in uploaded
// data are the caller's to fix and surface as 422.
var appProblems = map[ErrorType]problemSpec{
	ErrTypeSchema:           {http.StatusUnprocessableEntity, TypeAnalysisSchema, "Missing Required Columns"},
	ErrTypeValidation:       {http.StatusUnprocessableEntity, TypeAnalysisValidation, "Invalid Analysis Input"},
	ErrTypeInsufficientData: {http.StatusUnprocessableEntity, TypeInsufficientData, "Insufficient Data"},
	ErrTypeConversion:       {http.StatusUnprocessableEntity, TypeConversion, "Numeric Conversion Failed"},
	ErrTypeParsing:          {http.StatusUnprocessableEntity, TypeDataParsing, "File Could Not Be Read"},
	ErrTypeDependency:       {http.StatusServiceUnavailable, TypeDependency, "Analysis Engine Unavailable"},
	ErrTypeNotFound:         {http.StatusNotFound, TypeNotFound, "Resource Not Found"},
	ErrTypeStorage:          {http.StatusInternalServerError, TypeStorage, "Storage Error"},
}

var apiProblemTypes = map[Code]string{
	CodeInvalidRequest:       TypeValidation,
	CodeValidationFailed:     TypeValidation,
	CodeMissingParameter:     TypeValidation,
	CodeUnsupportedMediaType: TypeUnsupportedMediaType,
	CodePayloadTooLarge:      TypePayloadTooLarge,
	CodeRateLimited:          TypeRateLimit,
}

const (
	genericDetail = "An unexpected error occurred while processing your request"
	storageDetail = "The uploaded data could not be stored or read"
)

// ErrorHandler renders every error as an RFC 7807 problem and logs it.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler returns a handler. includeStack adds stack traces to 5xx
// problems and belongs in development only.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError writes err as a problem. A nil err writes nothing.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	problem := h.ErrorToProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
		if h.includeStack {
			problem.WithExtension("stack", getStackTrace())
		}
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("problem_type", problem.Type),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	render.Render(w, r, problem)
}

// ErrorToProblem classifies err. Cancellation wins over everything so a
// timed-out analysis never reports the engine error it was interrupted with.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return problemFor(r, http.StatusGatewayTimeout, TypeTimeout, "Request Timeout",
			"The request took too long to process and was cancelled")
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErrorProblem(apiErr, r)
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErrorProblem(appErr, r)
	}

	if IsPayloadTooLarge(err) {
		return problemFor(r, http.StatusRequestEntityTooLarge, TypePayloadTooLarge, "Payload Too Large",
			ErrPayloadTooLarge.Message)
	}
	if strings.Contains(err.Error(), "not found") {
		return problemFor(r, http.StatusNotFound, TypeNotFound, "Resource Not Found", err.Error())
	}
	return problemFor(r, http.StatusInternalServerError, TypeInternal, "Internal Server Error", genericDetail)
}

func appErrorProblem(appErr *AppError, r *http.Request) *ProblemDetails {
	spec, ok := appProblems[appErr.Type]
	if !ok {
		spec = problemSpec{http.StatusInternalServerError, TypeInternal, "Internal Server Error"}
	}

	detail := appErr.Message
	switch {
	case appErr.Type == ErrTypeStorage:
		detail = storageDetail
	case !ok:
		detail = genericDetail
	}

	problem := problemFor(r, spec.status, spec.typ, spec.title, detail).
		WithExtension("error_code", string(appErr.Type))
	// Context of server-side failures can carry paths; keep it in the log.
	if spec.status < http.StatusInternalServerError {
		for k, v := range appErr.Context {
			problem.WithExtension(k, v)
		}
	}
	return problem
}

func apiErrorProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType, ok := apiProblemTypes[apiErr.ErrorCode]
	if !ok {
		problemType = TypeInternal
	}

	problem := problemFor(r, apiErr.StatusCode, problemType, http.StatusText(apiErr.StatusCode), apiErr.Message).
		WithExtension("error_code", string(apiErr.ErrorCode))
	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

// HandlePanic logs a recovered panic with its stack and answers 500.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := problemFor(r, http.StatusInternalServerError, TypeInternal, "Internal Server Error",
		"An unexpected error occurred")
	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprint(recovered))
		problem.WithExtension("stack", getStackTrace())
	}
	render.Render(w, r, problem)
}

// NotFound is the router's 404 handler.
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	render.Render(w, r, problemFor(r, http.StatusNotFound, TypeNotFound, "Not Found",
		"The requested resource was not found"))
}

// MethodNotAllowed is the router's 405 handler.
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	render.Render(w, r, problemFor(r, http.StatusMethodNotAllowed, TypeInternal, "Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method)))
}

func getStackTrace() string {
	buf := make([]byte, 8<<10)
	return string(buf[:runtime.Stack(buf, false)])
}
