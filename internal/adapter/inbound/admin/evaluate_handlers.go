package admin

import (
	"net/http"

	"github.com/rosterops/rostergate/internal/domain/authz"
)

// evaluateRequest is the JSON request body for an authorization check.
type evaluateRequest struct {
	UserID       string         `json:"user_id"`
	Resource     string         `json:"resource"`
	Action       string         `json:"action"`
	ResourceID   string         `json:"resource_id,omitempty"`
	ResourceData map[string]any `json:"resource_data,omitempty"`
	VenueID      string         `json:"venue_id,omitempty"`
}

// handleEvaluate runs one authorization evaluation.
// POST /api/evaluate
func (h *APIHandler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if h.evaluationService == nil {
		h.respondError(w, http.StatusInternalServerError, "evaluation service not configured")
		return
	}

	var req evaluateRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Resource == "" || req.Action == "" {
		h.respondError(w, http.StatusBadRequest, "user_id, resource, and action are required")
		return
	}

	result := h.evaluationService.Evaluate(r.Context(), authz.EvaluationContext{
		UserID:       req.UserID,
		Resource:     req.Resource,
		Action:       req.Action,
		ResourceID:   req.ResourceID,
		ResourceData: req.ResourceData,
		VenueID:      req.VenueID,
	})
	h.respondJSON(w, http.StatusOK, result)
}

// timeWindowCheckRequest is the JSON request body for a standalone
// time-window check.
type timeWindowCheckRequest struct {
	UserID   string `json:"user_id"`
	Resource string `json:"resource"`
}

// handleTimeWindowCheck runs the time-window evaluator on its own.
// POST /api/timewindow/check
func (h *APIHandler) handleTimeWindowCheck(w http.ResponseWriter, r *http.Request) {
	if h.timeWindowService == nil {
		h.respondError(w, http.StatusInternalServerError, "time window service not configured")
		return
	}

	var req timeWindowCheckRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Resource == "" {
		h.respondError(w, http.StatusBadRequest, "user_id and resource are required")
		return
	}

	result := h.timeWindowService.Check(r.Context(), req.UserID, req.Resource)
	h.respondJSON(w, http.StatusOK, result)
}
