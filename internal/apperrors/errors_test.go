package apperrors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteError_Envelope(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/orgs", nil)
	r = r.WithContext(ContextWithRequestID(r.Context(), "req-123"))
	w := httptest.NewRecorder()

	WriteNotFound(w, r, "Organization not found")

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "not_found", resp.Error.Code)
	require.Equal(t, "Organization not found", resp.Error.Message)
	require.Equal(t, "req-123", resp.Error.RequestID)
}

func TestWriteSuccess_Envelope(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r = r.WithContext(ContextWithRequestID(r.Context(), "req-456"))
	w := httptest.NewRecorder()

	WriteSuccess(w, r, http.StatusOK, map[string]string{"status": "ok"})

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		RequestID string            `json:"request_id"`
		Data      map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "req-456", resp.RequestID)
	require.Equal(t, "ok", resp.Data["status"])
}

func TestRequestIDMiddleware_SetsHeaderAndContext(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seen)
	require.Equal(t, seen, w.Header().Get("X-Request-Id"))
}
