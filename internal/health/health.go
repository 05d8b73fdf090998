// Package health exposes the independent HTTP surface of spec §4.9:
// liveness, readiness, and a Prometheus metrics export. The teacher has
// no HTTP surface; this is new code paired with the ecosystem's standard
// promhttp exporter for the registry built in internal/metrics.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/umit/petracache/internal/metrics"
	"github.com/umit/petracache/pkg/logger"
)

// Server is the /health, /ready, /metrics HTTP responder.
type Server struct {
	httpServer *http.Server
}

// New builds a health Server bound to addr, backed by m.
func New(addr string, m *metrics.Metrics) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if m.Ready() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Serve blocks until the listener fails or Shutdown is called.
func (s *Server) Serve() error {
	logger.Infof("health endpoint listening on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP responder.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
