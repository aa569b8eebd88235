package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subgate/internal/types"
)

func newTestRequest(method, body string) *http.Request {
	r := httptest.NewRequest(method, "/test", strings.NewReader(body))
	return r.WithContext(types.WithRequestID(r.Context(), "req_test"))
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) APIErrorResponse {
	t.Helper()
	var out APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestError_AppErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		code       types.ErrorCode
		wantStatus int
	}{
		{"validation", types.ErrCodeValidationMalformedEvent, http.StatusBadRequest},
		{"not found", types.ErrCodeNotFoundPayment, http.StatusNotFound},
		{"conflict", types.ErrCodeConflictPaymentTerminal, http.StatusConflict},
		{"upstream", types.ErrCodeUpstreamUnavailable, http.StatusBadGateway},
		{"internal", types.ErrCodeInternalDB, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, newTestRequest(http.MethodGet, ""), types.NewAppError(tc.code, "boom", nil))

			assert.Equal(t, tc.wantStatus, rec.Code)
			body := decodeErrorBody(t, rec)
			assert.Equal(t, string(tc.code), body.Error.Code)
			assert.Equal(t, "req_test", body.Error.RequestID)
		})
	}
}

func TestError_UnknownErrorIsGeneric500(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, newTestRequest(http.MethodGet, ""), errors.New("pgx: connection reset"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeErrorBody(t, rec)
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), body.Error.Code)
	// Internal details never reach the client.
	assert.NotContains(t, rec.Body.String(), "pgx")
}

func TestDecodeJSON_ToleratesUnknownFields(t *testing.T) {
	var dst struct {
		Event string `json:"event"`
	}
	rec := httptest.NewRecorder()
	r := newTestRequest(http.MethodPost, `{"event":"payment.succeeded","future_field":true}`)

	require.NoError(t, DecodeJSON(rec, r, &dst))
	assert.Equal(t, "payment.succeeded", dst.Event)
}

func TestDecodeJSON_EmptyBody(t *testing.T) {
	var dst map[string]any
	rec := httptest.NewRecorder()

	err := DecodeJSON(rec, newTestRequest(http.MethodPost, ""), &dst)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidationMalformedEvent, types.CodeOf(err))
}

func TestDecodeJSON_MalformedJSON(t *testing.T) {
	var dst map[string]any
	rec := httptest.NewRecorder()

	err := DecodeJSON(rec, newTestRequest(http.MethodPost, `{"event":`), &dst)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidationMalformedEvent, types.CodeOf(err))
}

func TestDecodeJSON_TrailingGarbage(t *testing.T) {
	var dst map[string]any
	rec := httptest.NewRecorder()

	err := DecodeJSON(rec, newTestRequest(http.MethodPost, `{"a":1}{"b":2}`), &dst)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidationMalformedEvent, types.CodeOf(err))
}

func TestDecodeJSON_BodyTooLarge(t *testing.T) {
	var dst map[string]any
	rec := httptest.NewRecorder()
	huge := `{"pad":"` + strings.Repeat("x", maxRequestBodySize+1) + `"}`

	err := DecodeJSON(rec, newTestRequest(http.MethodPost, huge), &dst)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeValidationMalformedEvent, types.CodeOf(err))
}
