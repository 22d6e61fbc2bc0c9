// Package admin provides the JSON API for rostergate: the evaluation
// endpoint consumed by business actions, and CRUD over persisted
// conditional rules and time windows.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rosterops/rostergate/internal/config"
	"github.com/rosterops/rostergate/internal/domain/auth"
	"github.com/rosterops/rostergate/internal/service"
)

// APIHandler provides the JSON API endpoints.
type APIHandler struct {
	evaluationService *service.EvaluationService
	timeWindowService *service.TimeWindowService
	ruleAdminService  *service.RuleAdminService
	keyVerifier       *auth.KeyVerifier
	cfg               *config.Config
	registry          *prometheus.Registry
	logger            *slog.Logger
}

// APIOption configures an APIHandler dependency.
type APIOption func(*APIHandler)

// WithEvaluationService sets the evaluation orchestrator.
func WithEvaluationService(s *service.EvaluationService) APIOption {
	return func(h *APIHandler) { h.evaluationService = s }
}

// WithTimeWindowService sets the standalone time-window evaluator.
func WithTimeWindowService(s *service.TimeWindowService) APIOption {
	return func(h *APIHandler) { h.timeWindowService = s }
}

// WithRuleAdminService sets the rule administration service.
func WithRuleAdminService(s *service.RuleAdminService) APIOption {
	return func(h *APIHandler) { h.ruleAdminService = s }
}

// WithKeyVerifier sets the admin API key verifier.
func WithKeyVerifier(v *auth.KeyVerifier) APIOption {
	return func(h *APIHandler) { h.keyVerifier = v }
}

// WithConfig sets the loaded configuration (for the export endpoint).
func WithConfig(cfg *config.Config) APIOption {
	return func(h *APIHandler) { h.cfg = cfg }
}

// WithMetricsRegistry sets the Prometheus registry served at /metrics.
func WithMetricsRegistry(reg *prometheus.Registry) APIOption {
	return func(h *APIHandler) { h.registry = reg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) APIOption {
	return func(h *APIHandler) { h.logger = l }
}

// NewAPIHandler creates an API handler with the given dependencies.
func NewAPIHandler(opts ...APIOption) *APIHandler {
	h := &APIHandler{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers all API routes on the mux.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	// Unauthenticated surface.
	mux.HandleFunc("GET /healthz", h.handleHealth)
	if h.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	}

	// Authenticated surface.
	protected := http.NewServeMux()
	protected.HandleFunc("POST /api/evaluate", h.handleEvaluate)
	protected.HandleFunc("POST /api/timewindow/check", h.handleTimeWindowCheck)

	protected.HandleFunc("GET /api/roles/{role}/rules", h.handleListRules)
	protected.HandleFunc("POST /api/roles/{role}/rules", h.handleCreateRule)
	protected.HandleFunc("DELETE /api/rules/{id}", h.handleDeleteRule)

	protected.HandleFunc("GET /api/roles/{role}/time-windows", h.handleListTimeWindows)
	protected.HandleFunc("POST /api/roles/{role}/time-windows", h.handleCreateTimeWindow)
	protected.HandleFunc("DELETE /api/time-windows/{id}", h.handleDeleteTimeWindow)

	protected.HandleFunc("GET /api/config/export", h.handleExportConfig)

	mux.Handle("/api/", h.authMiddleware(protected))
}

// handleHealth reports liveness.
// GET /healthz
func (h *APIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondJSON writes a JSON response with the given status code and data.
func (h *APIHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a JSON error response with the given status code and message.
func (h *APIHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// readJSON decodes the request body into the given value.
func (h *APIHandler) readJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
