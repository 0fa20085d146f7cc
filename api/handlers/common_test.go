package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/types"
)

// =============================================================================
// 🧪 Common 函数测试
// =============================================================================

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestWriteSuccessStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name           string
		err            *types.Error
		expectedStatus int
	}{
		{"invalid request", types.NewError(types.ErrInvalidRequest, "topic is required"), http.StatusBadRequest},
		{"no session", types.NewError(types.ErrNoActiveSession, "no debate"), http.StatusNotFound},
		{"busy", types.NewError(types.ErrSessionBusy, "busy"), http.StatusConflict},
		{"explicit status wins", types.NewError(types.ErrInvalidConfig, "archive off").WithHTTPStatus(501), http.StatusNotImplemented},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err, zap.NewNop())

			assert.Equal(t, tt.expectedStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tt.err.Code), resp.Error.Code)
			assert.Equal(t, tt.err.Message, resp.Error.Message)
		})
	}
}

func TestWriteAnyError(t *testing.T) {
	t.Run("upstream failure reads as paused", func(t *testing.T) {
		cause := errors.New("dial tcp: connection refused")
		err := types.NewError(types.ErrUpstreamUnavailable, "generating turn 3 for Jack").WithCause(cause).WithRetryable(true)

		w := httptest.NewRecorder()
		WriteAnyError(w, err, zap.NewNop())

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, "UPSTREAM_UNAVAILABLE", resp.Error.Code)
		assert.Equal(t, "debate paused: generating turn 3 for Jack", resp.Error.Message)
		assert.Equal(t, "dial tcp: connection refused", resp.Error.Details)
		assert.True(t, resp.Error.Retryable)
		assert.Equal(t, "generating turn 3 for Jack", err.Message, "the session error is left untouched")
	})

	t.Run("plain error is internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteAnyError(w, errors.New("boom"), nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	})
}

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code       types.ErrorCode
		wantStatus int
	}{
		{types.ErrDuplicateIdentity, http.StatusBadRequest},
		{types.ErrInvalidParticipant, http.StatusBadRequest},
		{types.ErrBudgetExhausted, http.StatusConflict},
		{types.ErrOutOfOrderTurn, http.StatusConflict},
		{types.ErrSessionNotComplete, http.StatusConflict},
		{types.ErrUpstreamUnavailable, http.StatusServiceUnavailable},
		{types.ErrEmptyContent, http.StatusBadGateway},
		{types.ErrNotFound, http.StatusNotFound},
		{types.ErrUnauthorized, http.StatusUnauthorized},
		{types.ErrRateLimited, http.StatusTooManyRequests},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, mapErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestDecodeJSONBody(t *testing.T) {
	type body struct {
		Topic string `json:"topic"`
	}

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid", `{"topic":"AI"}`, false},
		{"invalid JSON", `{"topic":"AI",}`, true},
		{"unknown field", `{"topic":"AI","extra":1}`, true},
		{"oversized", `{"topic":"` + strings.Repeat("x", 2<<20) + `"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.payload))

			var dst body
			err := DecodeJSONBody(w, r, &dst, zap.NewNop())
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, http.StatusBadRequest, w.Code)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, "AI", dst.Topic)
		})
	}
}

func TestDecodeOptionalJSONBody_Empty(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/test", nil)

	var dst map[string]any
	assert.NoError(t, DecodeOptionalJSONBody(w, r, &dst, nil))
	assert.Nil(t, dst)
}

func TestResponseWriter(t *testing.T) {
	w := httptest.NewRecorder()
	rw := NewResponseWriter(w)

	assert.Equal(t, http.StatusOK, rw.StatusCode)
	assert.False(t, rw.Written)

	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusBadRequest)
	assert.Equal(t, http.StatusCreated, rw.StatusCode)

	n, err := rw.Write([]byte("test"))
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, int64(4), rw.Bytes)
	assert.Same(t, w, rw.Unwrap())
}
