// Package adminhttp serves the optional monitoring surface: Prometheus
// exposition and a liveness probe over HTTP, entirely separate from the
// TCP command surface.
package adminhttp

import (
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wraps an *http.Server exposing /metrics and /healthz. Ready
// flips to true once journal replay has finished, so /healthz reports
// liveness accurately during startup.
type Server struct {
	httpSrv *http.Server
	ready   atomic.Bool
}

// New builds a Server bound to addr. reg is the Prometheus registerer the
// engine's metrics.Sink was constructed with.
func New(addr string, reg *prometheus.Registry) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	s := &Server{}

	r.Get("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if !s.ready.Load() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.httpSrv = &http.Server{Addr: addr, Handler: r}
	return s
}

// MarkReady flips the /healthz probe to healthy. Called once the engine
// has finished journal replay.
func (s *Server) MarkReady() {
	s.ready.Store(true)
}

// Run blocks serving HTTP until the server is closed. It returns
// http.ErrServerClosed on a clean shutdown, matching net/http's
// convention.
func (s *Server) Run() error {
	return s.httpSrv.ListenAndServe()
}

// Close shuts the HTTP server down immediately, closing its listener and
// any active connections without waiting for in-flight requests.
func (s *Server) Close() error {
	return s.httpSrv.Close()
}
