// Package ops exposes the validator's operational HTTP surface: health,
// metrics and build info.
package ops

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/omegavid/validator/internal/version"
)

// Checker verifies the availability of one dependency.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// HealthCheck implements Checker.
func (f CheckerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Server is the operational HTTP server.
type Server struct {
	checks map[string]Checker
	logger *zap.Logger
}

// NewServer creates an ops server with named dependency checks.
func NewServer(checks map[string]Checker, logger *zap.Logger) *Server {
	return &Server{checks: checks, logger: logger}
}

// Routes mounts the ops endpoints on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(s.checks))}
	status := http.StatusOK

	for name, check := range s.checks {
		if err := check.HealthCheck(r.Context()); err != nil {
			s.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
			resp.Checks[name] = "fail"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, status, resp)
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": version.Version,
		"commit":  version.Commit,
		"date":    version.Date,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
