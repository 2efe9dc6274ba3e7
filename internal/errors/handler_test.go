package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestErrorHandler(includeStack bool) *ErrorHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewErrorHandler(logger, includeStack)
}

func handleAndDecode(t *testing.T, h *ErrorHandler, err error) (int, map[string]interface{}) {
	t.Helper()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/abc", nil)
	h.HandleError(rec, req, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestErrorHandler_HandleError(t *testing.T) {
	h := newTestErrorHandler(false)

	t.Run("api error maps code and type", func(t *testing.T) {
		status, body := handleAndDecode(t, h, New(http.StatusNotFound, "SESSION_NOT_FOUND", "Session not found"))

		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, TypeSessionNotFound, body["type"])
		assert.Equal(t, "SESSION_NOT_FOUND", body["error_code"])
		assert.Equal(t, "Session not found", body["detail"])
		assert.Equal(t, "/api/sessions/abc", body["instance"])
		assert.Contains(t, body, "trace_id")
	})

	t.Run("parsing app error yields 422", func(t *testing.T) {
		err := NewParsingError("workbook could not be read", fmt.Errorf("zip: not a valid zip file"))
		status, body := handleAndDecode(t, h, err)

		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, TypeWorkbookUnreadable, body["type"])
		assert.Equal(t, string(ErrTypeParsing), body["error_type"])
	})

	t.Run("validation app error yields 400", func(t *testing.T) {
		status, body := handleAndDecode(t, h, NewAppValidationError("bad input"))

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, TypeValidation, body["type"])
	})

	t.Run("not found app error yields 404", func(t *testing.T) {
		status, _ := handleAndDecode(t, h, NewNotFoundError("session"))
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("app error context exposed", func(t *testing.T) {
		err := NewParsingError("bad workbook", nil).WithContext("role", "master")
		_, body := handleAndDecode(t, h, err)

		ctx, ok := body["context"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "master", ctx["role"])
	})

	t.Run("deadline exceeded yields 504", func(t *testing.T) {
		status, body := handleAndDecode(t, h, context.DeadlineExceeded)

		assert.Equal(t, http.StatusGatewayTimeout, status)
		assert.Equal(t, TypeTimeout, body["type"])
	})

	t.Run("unknown error yields 500 without leaking detail", func(t *testing.T) {
		status, body := handleAndDecode(t, h, fmt.Errorf("database exploded"))

		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, TypeInternal, body["type"])
		assert.NotContains(t, body["detail"], "exploded")
	})

	t.Run("stack trace only in development", func(t *testing.T) {
		_, body := handleAndDecode(t, h, fmt.Errorf("boom"))
		assert.NotContains(t, body, "stack")

		dev := newTestErrorHandler(true)
		_, body = handleAndDecode(t, dev, fmt.Errorf("boom"))
		assert.Contains(t, body, "stack")
	})

	t.Run("nil error writes nothing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		h.HandleError(rec, req, nil)
		assert.Empty(t, rec.Body.String())
	})
}

func TestErrorHandler_NotFound(t *testing.T) {
	h := newTestErrorHandler(false)

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, TypeNotFound, body["type"])
	assert.Equal(t, "/nope", body["instance"])
}

func TestErrorHandler_MethodNotAllowed(t *testing.T) {
	h := newTestErrorHandler(false)

	rec := httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodPatch, "/api/health", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "PATCH")
}

func TestAppError(t *testing.T) {
	t.Run("message with cause", func(t *testing.T) {
		cause := fmt.Errorf("underlying")
		err := NewParsingError("read failed", cause)

		assert.Equal(t, "[PARSING] read failed: underlying", err.Error())
		assert.ErrorIs(t, err, cause)
	})

	t.Run("message without cause", func(t *testing.T) {
		err := NewNotFoundError("table")
		assert.Equal(t, "[NOT_FOUND] table not found", err.Error())
	})
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	pd := NewProblemDetails(
		http.StatusBadRequest,
		TypeValidation,
		"Bad Request",
		"limit must be a non-negative integer",
		"/api/sessions/abc/languages",
	).WithExtension("error_code", "VALIDATION_FAILED")

	data, err := json.Marshal(pd)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, TypeValidation, body["type"])
	assert.EqualValues(t, http.StatusBadRequest, body["status"])
	assert.Equal(t, "VALIDATION_FAILED", body["error_code"])
}
