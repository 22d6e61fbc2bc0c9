package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/rosterops/rostergate/internal/domain/authz"
	"github.com/rosterops/rostergate/internal/service"
)

// ruleRequest is the JSON request body for creating a conditional rule.
type ruleRequest struct {
	Resource   string             `json:"resource"`
	Action     string             `json:"action"`
	Conditions []conditionRequest `json:"conditions"`
	// RequireAll defaults to true when omitted.
	RequireAll *bool `json:"require_all,omitempty"`
}

// conditionRequest is the JSON request body for one condition.
type conditionRequest struct {
	Kind     string `json:"kind"`
	Value    any    `json:"value,omitempty"`
	Field    string `json:"field,omitempty"`
	Operator string `json:"operator,omitempty"`
}

// ruleResponse is the JSON response for a conditional rule.
type ruleResponse struct {
	ID         string              `json:"id"`
	RoleID     string              `json:"role_id"`
	Resource   string              `json:"resource"`
	Action     string              `json:"action"`
	Conditions []conditionResponse `json:"conditions"`
	RequireAll bool                `json:"require_all"`
	Origin     string              `json:"origin"`
	CreatedAt  time.Time           `json:"created_at"`
}

type conditionResponse struct {
	Kind     string `json:"kind"`
	Value    any    `json:"value,omitempty"`
	Field    string `json:"field,omitempty"`
	Operator string `json:"operator,omitempty"`
}

// toDomainRule converts a request body to a domain rule.
func toDomainRule(req ruleRequest) authz.ConditionalRule {
	conditions := make([]authz.ConditionDefinition, len(req.Conditions))
	for i, c := range req.Conditions {
		conditions[i] = authz.ConditionDefinition{
			Kind:     authz.ConditionKind(c.Kind),
			Value:    c.Value,
			Field:    c.Field,
			Operator: authz.Operator(c.Operator),
		}
	}
	requireAll := true
	if req.RequireAll != nil {
		requireAll = *req.RequireAll
	}
	return authz.ConditionalRule{
		Resource:   req.Resource,
		Action:     req.Action,
		Conditions: conditions,
		RequireAll: requireAll,
	}
}

// toRuleResponse converts a domain rule to an API response.
func toRuleResponse(r *authz.ConditionalRule) ruleResponse {
	conditions := make([]conditionResponse, len(r.Conditions))
	for i, c := range r.Conditions {
		conditions[i] = conditionResponse{
			Kind:     string(c.Kind),
			Value:    c.Value,
			Field:    c.Field,
			Operator: string(c.Operator),
		}
	}
	return ruleResponse{
		ID:         r.ID,
		RoleID:     r.RoleID,
		Resource:   r.Resource,
		Action:     r.Action,
		Conditions: conditions,
		RequireAll: r.RequireAll,
		Origin:     string(r.Origin),
		CreatedAt:  r.CreatedAt,
	}
}

// handleListRules returns a role's persisted conditional rules.
// GET /api/roles/{role}/rules
func (h *APIHandler) handleListRules(w http.ResponseWriter, r *http.Request) {
	if h.ruleAdminService == nil {
		h.respondError(w, http.StatusInternalServerError, "rule admin service not configured")
		return
	}

	roleID := r.PathValue("role")
	rules, err := h.ruleAdminService.ListRules(r.Context(), roleID)
	if err != nil {
		h.logger.Error("failed to list rules", "role_id", roleID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}

	result := make([]ruleResponse, len(rules))
	for i := range rules {
		result[i] = toRuleResponse(&rules[i])
	}
	h.respondJSON(w, http.StatusOK, result)
}

// handleCreateRule creates a conditional rule for a role.
// POST /api/roles/{role}/rules
func (h *APIHandler) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	if h.ruleAdminService == nil {
		h.respondError(w, http.StatusInternalServerError, "rule admin service not configured")
		return
	}

	var req ruleRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	roleID := r.PathValue("role")
	created, err := h.ruleAdminService.CreateRule(r.Context(), roleID, toDomainRule(req))
	if err != nil {
		if errors.Is(err, service.ErrInvalidRule) {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to create rule", "role_id", roleID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create rule")
		return
	}
	h.respondJSON(w, http.StatusCreated, toRuleResponse(created))
}

// handleDeleteRule removes a conditional rule by ID. Idempotent.
// DELETE /api/rules/{id}
func (h *APIHandler) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if h.ruleAdminService == nil {
		h.respondError(w, http.StatusInternalServerError, "rule admin service not configured")
		return
	}

	id := r.PathValue("id")
	removed, err := h.ruleAdminService.DeleteRule(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete rule", "rule_id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to delete rule")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}
