package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/locagame/pkg/errors"
	"github.com/utafrali/locagame/pkg/logger"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *ErrorResponse {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestWriteJSON_SetsContentTypeAndStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, Response{Data: "hello"})

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"data":"hello"}`, rec.Body.String())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"app error", apperrors.NotFound("product", "p-1"), http.StatusNotFound, "NOT_FOUND"},
		{"conflict app error", apperrors.Conflict("insufficient stock"), http.StatusConflict, "CONFLICT"},
		{"wrapped not found", fmt.Errorf("get: %w", apperrors.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"invalid input sentinel", apperrors.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
		{"unavailable", apperrors.Unavailable("stock store", fmt.Errorf("dial tcp")), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			WriteError(rec, req, tt.err, logger.Discard())

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestWriteError_UnknownErrorHidesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	WriteError(rec, req, fmt.Errorf("pq: password authentication failed"), logger.Discard())

	assert.Equal(t, "an internal error occurred", decodeError(t, rec).Message)
}

func TestWriteError_IncludesDetailsAndRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req = req.WithContext(logger.WithCorrelationID(context.Background(), "req-42"))

	WriteError(rec, req, apperrors.Conflict("stock taken").WithDetail("product_id", "p-9"), logger.Discard())

	body := decodeError(t, rec)
	assert.Equal(t, "req-42", body.RequestID)
	assert.Equal(t, "p-9", body.Details["product_id"])
}

func TestWriteValidationError_PlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteValidationError(rec, fmt.Errorf("decode request body: EOF"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeError(t, rec).Code)
}

func TestNewPaginatedResponse(t *testing.T) {
	tests := []struct {
		total, page, perPage int
		wantPages            int
		wantNext             bool
	}{
		{total: 45, page: 1, perPage: 20, wantPages: 3, wantNext: true},
		{total: 45, page: 3, perPage: 20, wantPages: 3, wantNext: false},
		{total: 40, page: 2, perPage: 20, wantPages: 2, wantNext: false},
		{total: 0, page: 1, perPage: 20, wantPages: 0, wantNext: false},
	}
	for _, tt := range tests {
		resp := NewPaginatedResponse[string](nil, tt.total, tt.page, tt.perPage)
		assert.Equal(t, tt.wantPages, resp.TotalPages)
		assert.Equal(t, tt.wantNext, resp.HasNext)
		assert.NotNil(t, resp.Data)
	}
}

func TestParseUUID(t *testing.T) {
	rec := httptest.NewRecorder()
	id, ok := ParseUUID(rec, "550e8400-e29b-41d4-a716-446655440000")
	assert.True(t, ok)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", id.String())

	rec = httptest.NewRecorder()
	_, ok = ParseUUID(rec, "not-a-uuid")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", decodeError(t, rec).Code)
}

func TestQueryInt(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x?quantity=3", nil)
	n, ok := QueryInt(rec, req, "quantity", 1)
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	n, ok = QueryInt(rec, req, "page", 1)
	assert.True(t, ok)
	assert.Equal(t, 1, n)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/x?quantity=two", nil)
	_, ok = QueryInt(rec, req, "quantity", 1)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
