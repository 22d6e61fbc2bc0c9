package admin

import (
	"errors"
	"net/http"

	"github.com/rosterops/rostergate/internal/domain/schedule"
	"github.com/rosterops/rostergate/internal/service"
)

// timeWindowRequest is the JSON request body for creating a time window.
type timeWindowRequest struct {
	Resource   string `json:"resource"`
	Action     string `json:"action,omitempty"`
	DaysOfWeek []int  `json:"days_of_week"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Timezone   string `json:"timezone"`
}

// handleListTimeWindows returns a role's time-window rules.
// GET /api/roles/{role}/time-windows
func (h *APIHandler) handleListTimeWindows(w http.ResponseWriter, r *http.Request) {
	if h.ruleAdminService == nil {
		h.respondError(w, http.StatusInternalServerError, "rule admin service not configured")
		return
	}

	roleID := r.PathValue("role")
	windows, err := h.ruleAdminService.ListTimeWindows(r.Context(), roleID)
	if err != nil {
		h.logger.Error("failed to list time windows", "role_id", roleID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list time windows")
		return
	}
	if windows == nil {
		windows = []schedule.TimeWindowRule{}
	}
	h.respondJSON(w, http.StatusOK, windows)
}

// handleCreateTimeWindow creates a time-window rule for a role.
// POST /api/roles/{role}/time-windows
func (h *APIHandler) handleCreateTimeWindow(w http.ResponseWriter, r *http.Request) {
	if h.ruleAdminService == nil {
		h.respondError(w, http.StatusInternalServerError, "rule admin service not configured")
		return
	}

	var req timeWindowRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	roleID := r.PathValue("role")
	created, err := h.ruleAdminService.CreateTimeWindow(r.Context(), roleID, schedule.TimeWindowRule{
		Resource:   req.Resource,
		Action:     req.Action,
		DaysOfWeek: req.DaysOfWeek,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Timezone:   req.Timezone,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidRule) {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to create time window", "role_id", roleID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create time window")
		return
	}
	h.respondJSON(w, http.StatusCreated, created)
}

// handleDeleteTimeWindow removes a time-window rule by ID. Idempotent.
// DELETE /api/time-windows/{id}
func (h *APIHandler) handleDeleteTimeWindow(w http.ResponseWriter, r *http.Request) {
	if h.ruleAdminService == nil {
		h.respondError(w, http.StatusInternalServerError, "rule admin service not configured")
		return
	}

	id := r.PathValue("id")
	removed, err := h.ruleAdminService.DeleteTimeWindow(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete time window", "window_id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to delete time window")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}
