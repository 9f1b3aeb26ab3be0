// Package metricshttp exposes the Prometheus registry over HTTP. Dispatch is
// fire-and-forget, so the failure counters served here are the operator's
// only aggregate view of lost events.
package metricshttp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradesentry/internal/ports"
)

// Server serves GET /metrics on its own listener.
type Server struct {
	srv    *http.Server
	logger ports.Logger
}

// Handler returns the exposition handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// New creates a metrics server listening on addr.
func New(addr string, logger ports.Logger) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for metrics server")
	}
	if addr == "" {
		return nil, fmt.Errorf("%w: metrics listen address is empty", ports.ErrConfiguration)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}, nil
}

// Start serves in the background. A listener failure is logged, not fatal:
// the engine keeps reporting trades even when the metrics port is taken.
func (s *Server) Start() {
	go func() {
		s.logger.Info(context.Background(), "Metrics endpoint listening", map[string]interface{}{"addr": s.srv.Addr})
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error(context.Background(), err, "Metrics endpoint stopped")
		}
	}()
}

// Close shuts the listener down.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
