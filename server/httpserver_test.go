package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBaseServer(t *testing.T, ready func() bool) *BaseServer {
	t.Helper()
	srv, err := New(&HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		Log:                      slog.New(slog.NewTextHandler(io.Discard, nil)),
		DrainDuration:            10 * time.Millisecond,
		GracefulShutdownDuration: time.Second,
		Readiness:                ready,
	})
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, srv *BaseServer, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestLiveness(t *testing.T) {
	srv := newTestBaseServer(t, nil)
	rec := get(t, srv, "/livez")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessGate(t *testing.T) {
	ready := false
	srv := newTestBaseServer(t, func() bool { return ready })

	rec := get(t, srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "not ready before a generation is loaded")

	ready = true
	rec = get(t, srv, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDrainUndrain(t *testing.T) {
	srv := newTestBaseServer(t, nil)

	rec := get(t, srv, "/drain")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = get(t, srv, "/undrain")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, srv, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMissingLoggerRejected(t *testing.T) {
	_, err := New(&HTTPServerConfig{ListenAddr: ":0"})
	assert.Error(t, err)
}
