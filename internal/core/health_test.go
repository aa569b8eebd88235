package core

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subgate/internal/config"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func newHealthServer(t *testing.T, probes ...HealthProbe) *Server {
	t.Helper()
	s, err := NewServer(&config.Config{}, slog.Default())
	require.NoError(t, err)
	s.HealthProbes = probes
	s.MountRoutes()
	return s
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	s := newHealthServer(t, DatabaseProbe{Pool: stubPinger{}})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Components["database"].Status)
}

func TestHandleHealth_DatabaseDown(t *testing.T) {
	s := newHealthServer(t, DatabaseProbe{Pool: stubPinger{err: errors.New("connection refused")}})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "unhealthy", resp.Components["database"].Status)
	assert.Contains(t, resp.Components["database"].Message, "connection refused")
}

func TestHandleHealth_NoProbes(t *testing.T) {
	s := newHealthServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoverer_PanicBecomes500(t *testing.T) {
	s := newHealthServer(t)
	s.Router().Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "an unexpected error occurred")
	assert.NotContains(t, rec.Body.String(), "handler exploded")
}
