// Package api exposes the read-only status HTTP interface served in
// continuous mode. Downstream catalog consumers never call it; they
// read the persisted output directly.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/snapfresh/snapfresh/internal/metrics"
	"github.com/snapfresh/snapfresh/internal/refresh"
	"github.com/snapfresh/snapfresh/internal/registry"
)

// Server wires HTTP handlers to the registry and the aggregator.
type Server struct {
	router   chi.Router
	registry *registry.Registry
	stats    *refresh.Aggregator
	logger   *zap.Logger
}

// NewServer constructs a Server with its routes.
func NewServer(reg *registry.Registry, stats *refresh.Aggregator, logger *zap.Logger) *Server {
	metrics.Init()
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		registry: reg,
		stats:    stats,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/domains", s.listDomains)
		r.Get("/domains/{domain}/report", s.domainReport)
		r.Get("/stats", s.cumulativeStats)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listDomains(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"domains": s.registry.Names()})
}

func (s *Server) domainReport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "domain")
	if _, err := s.registry.Get(name); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, registry.ErrNotFound) {
			status = http.StatusNotFound
		}
		s.writeError(w, status, err.Error())
		return
	}
	report, ok := s.stats.LastReport(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no completed cycle for domain")
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) cumulativeStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("response write failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
