package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricinglab/internal/shared/testutil"
)

func newRequest(method, path, reqID string) *http.Request {
	r := httptest.NewRequest(method, path, nil)
	if reqID != "" {
		r = r.WithContext(context.WithValue(r.Context(), middleware.RequestIDKey, reqID))
	}
	return r
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestNewErrorHandler(t *testing.T) {
	for _, includeStack := range []bool{true, false} {
		t.Run(fmt.Sprintf("stack=%v", includeStack), func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, includeStack)

			assert.NotNil(t, handler)
			assert.Equal(t, includeStack, handler.includeStack)
		})
	}
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantExt    map[string]any
	}{
		{
			name:       "deadline exceeded",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "api error",
			err:        ErrPayloadTooLarge,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantType:   TypePayloadTooLarge,
			wantExt:    map[string]any{"error_code": "PAYLOAD_TOO_LARGE"},
		},
		{
			name:       "unsupported media type",
			err:        New(http.StatusUnsupportedMediaType, CodeUnsupportedMediaType, "multipart/form-data required"),
			wantStatus: http.StatusUnsupportedMediaType,
			wantType:   TypeUnsupportedMediaType,
		},
		{
			name:       "field validation",
			err:        ErrValidation("analysis_type", "required"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantExt: map[string]any{
				"error_code": "VALIDATION_FAILED",
				"details":    map[string]any{"field": "analysis_type", "message": "required"},
			},
		},
		{
			name:       "body read past limit",
			err:        fmt.Errorf("read upload: %w", &http.MaxBytesError{Limit: 10}),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantType:   TypePayloadTooLarge,
		},
		{
			name:       "schema error lists missing columns",
			err:        fmt.Errorf("run maxdiff: %w", NewSchemaError([]string{"Utility Score"})),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeAnalysisSchema,
			wantExt: map[string]any{
				"error_code":      "SCHEMA",
				"missing_columns": []any{"Utility Score"},
			},
		},
		{
			name:       "validation error",
			err:        NewAppValidationError("input table has no rows"),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeAnalysisValidation,
		},
		{
			name:       "insufficient data",
			err:        NewInsufficientDataError(1, 2),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeInsufficientData,
			wantExt:    map[string]any{"found": float64(1), "required": float64(2)},
		},
		{
			name:       "conversion error",
			err:        NewConversionError("Price", nil),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeConversion,
			wantExt:    map[string]any{"column": "Price"},
		},
		{
			name:       "dependency unavailable",
			err:        NewDependencyUnavailableError("regression", nil),
			wantStatus: http.StatusServiceUnavailable,
			wantType:   TypeDependency,
		},
		{
			name:       "storage error hides cause",
			err:        NewStorageError("write /var/uploads/a.csv", fmt.Errorf("disk full")),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeStorage,
		},
		{
			name:       "plain not found text",
			err:        fmt.Errorf("result not found"),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
		},
		{
			name:       "unknown error",
			err:        fmt.Errorf("something odd"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, false)

			w := httptest.NewRecorder()
			r := newRequest(http.MethodPost, "/api/uploads/abc/analyze", "req-1")

			handler.HandleError(w, r, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeProblem(t, w)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/uploads/abc/analyze", body["instance"])
			assert.Equal(t, "req-1", body["trace_id"])
			for k, v := range tt.wantExt {
				assert.Equal(t, v, body[k], "extension %s", k)
			}
		})
	}
}

func TestErrorHandler_HandleError_Nil(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	handler.HandleError(w, newRequest(http.MethodGet, "/", ""), nil)

	assert.Equal(t, 0, w.Body.Len())
	assert.Equal(t, 0, logs.Count())
}

func TestErrorHandler_HandleError_LogLevel(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	handler.HandleError(httptest.NewRecorder(), newRequest(http.MethodGet, "/", ""), NewInsufficientDataError(0, 1))
	handler.HandleError(httptest.NewRecorder(), newRequest(http.MethodGet, "/", ""), fmt.Errorf("crash"))

	records := logs.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "WARN", records[0].Level.String())
	assert.Equal(t, "ERROR", records[1].Level.String())
}

func TestErrorHandler_StorageDetailIsGeneric(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	err := NewStorageError("write", fmt.Errorf("open /secret/path: denied")).WithContext("path", "/secret/path")
	handler.HandleError(w, newRequest(http.MethodGet, "/", ""), err)

	assert.NotContains(t, w.Body.String(), "/secret/path")
}

func TestErrorHandler_IncludeStack(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, true)

	w := httptest.NewRecorder()
	handler.HandleError(w, newRequest(http.MethodGet, "/", ""), fmt.Errorf("boom"))
	assert.Contains(t, decodeProblem(t, w), "stack")

	w = httptest.NewRecorder()
	handler.HandleError(w, newRequest(http.MethodGet, "/", ""), NewAppValidationError("bad"))
	assert.NotContains(t, decodeProblem(t, w), "stack")
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	tests := []struct {
		name         string
		recovered    interface{}
		includeStack bool
		wantMsg      string
	}{
		{"string panic with stack", "something went wrong", true, "something went wrong"},
		{"error panic without stack", fmt.Errorf("error occurred"), false, ""},
		{"integer panic with stack", 42, true, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logHandler := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, tt.includeStack)

			w := httptest.NewRecorder()
			handler.HandlePanic(w, newRequest(http.MethodGet, "/test", "test-request-id"), tt.recovered)

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			body := decodeProblem(t, w)
			assert.Equal(t, TypeInternal, body["type"])
			assert.Equal(t, "An unexpected error occurred", body["detail"])
			assert.Equal(t, "test-request-id", body["trace_id"])

			if tt.includeStack {
				assert.Equal(t, tt.wantMsg, body["panic"])
				assert.Contains(t, body, "stack")
			} else {
				assert.NotContains(t, body, "panic")
			}
			assert.True(t, logHandler.ContainsMessage("panic recovered"))
		})
	}
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	handler.NotFound(w, newRequest(http.MethodGet, "/api/missing", "r1"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "/api/missing", decodeProblem(t, w)["instance"])

	w = httptest.NewRecorder()
	handler.MethodNotAllowed(w, newRequest(http.MethodPatch, "/api/uploads", "r2"))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.True(t, strings.Contains(decodeProblem(t, w)["detail"].(string), "PATCH"))
}

func TestGetStackTrace(t *testing.T) {
	assert.Contains(t, getStackTrace(), "goroutine")
}

func TestErrorHandlerConcurrency(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := httptest.NewRecorder()
			handler.HandleError(w, newRequest(http.MethodGet, fmt.Sprintf("/test-%d", i), fmt.Sprintf("req-%d", i)), NewInsufficientDataError(i, 20))
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		}(i)
	}
	wg.Wait()
}
