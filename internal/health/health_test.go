package health

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/umit/petracache/internal/metrics"
)

func TestHealthAlwaysOK(t *testing.T) {
	m := metrics.New()
	s := New("127.0.0.1:0", m)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyReflectsFlag(t *testing.T) {
	m := metrics.New()
	s := New("127.0.0.1:0", m)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	m.SetReady(true)
	rec2 := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestMetricsEndpointServesText(t *testing.T) {
	m := metrics.New()
	s := New("127.0.0.1:0", m)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "petracache_ops_total")
}
