// Package server exposes the serve-mode HTTP surface: health, metrics and
// the last provisioning report.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edvin/cronverge/internal/provision"
)

type Server struct {
	router chi.Router
	logger zerolog.Logger
	rec    *provision.Reconciler
}

// New builds the HTTP server around a reconciler and its metrics registry.
func New(logger zerolog.Logger, rec *provision.Reconciler, reg *prometheus.Registry) *Server {
	s := &Server{
		router: chi.NewRouter(),
		logger: logger.With().Str("component", "http").Logger(),
		rec:    rec,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)

	s.router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/api/v1/status", s.handleStatus)

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	report := s.rec.LastReport()
	w.Header().Set("Content-Type", "application/json")
	if report == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "no provisioning pass completed yet"})
		return
	}
	if err := json.NewEncoder(w).Encode(report); err != nil {
		s.logger.Error().Err(err).Msg("encode status response")
	}
}
