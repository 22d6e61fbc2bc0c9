// Package service contains the application services of the authorization
// engine: the evaluation orchestrator, the per-condition evaluator, the
// time-window evaluator, rule resolution, and rule administration.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/rosterops/rostergate/internal/domain/authz"
)

// Denial reasons surfaced to callers. The engine never distinguishes
// "denied by policy" from "evaluation broke" beyond these strings, to
// avoid leaking policy structure.
const (
	reasonAdminOverride    = "administrator override"
	reasonNoBasePermission = "no base permission"
	reasonNoRules          = "no conditional rules configured"
	reasonNoRuleSatisfied  = "no conditional rule satisfied"
	reasonEvaluationError  = "evaluation error"
)

// EvaluationService is the sole authorization entry point. Each Evaluate
// call is independent and safe to run concurrently: evaluation never
// mutates what it reads, performs at most one resource fetch and one rule
// fetch, and holds no lock.
type EvaluationService struct {
	directory  authz.Directory
	resources  authz.ResourceStore
	resolver   *RuleResolver
	conditions *ConditionEvaluator
	metrics    *Metrics
	logger     *slog.Logger
}

// NewEvaluationService creates the evaluation orchestrator.
func NewEvaluationService(directory authz.Directory, resources authz.ResourceStore, resolver *RuleResolver, conditions *ConditionEvaluator, metrics *Metrics, logger *slog.Logger) *EvaluationService {
	return &EvaluationService{
		directory:  directory,
		resources:  resources,
		resolver:   resolver,
		conditions: conditions,
		metrics:    metrics,
		logger:     logger,
	}
}

// Evaluate authorizes one action against one resource instance. It never
// returns an error: every path, including internal failures, terminates
// in a well-formed result, and every failure path denies.
func (s *EvaluationService) Evaluate(ctx context.Context, ec authz.EvaluationContext) authz.EvaluationResult {
	start := time.Now()
	result := s.evaluate(ctx, ec)
	s.metrics.ObserveEvaluation(result.Allowed, time.Since(start))
	return result
}

func (s *EvaluationService) evaluate(ctx context.Context, ec authz.EvaluationContext) authz.EvaluationResult {
	// Admin bypass supersedes every other check, including time windows.
	admin, err := s.directory.IsAdmin(ctx, ec.UserID)
	if err != nil {
		s.logger.Error("admin lookup failed", "user_id", ec.UserID, "error", err)
		return deny(reasonEvaluationError)
	}
	if admin {
		return authz.EvaluationResult{Allowed: true, Reason: reasonAdminOverride}
	}

	// Conditional rules only narrow an already-granted base permission.
	granted, err := s.directory.HasBasePermission(ctx, ec.UserID, ec.Resource, ec.Action, ec.VenueID)
	if err != nil {
		s.logger.Error("base permission check failed", "user_id", ec.UserID, "error", err)
		return deny(reasonEvaluationError)
	}
	if !granted {
		return deny(reasonNoBasePermission)
	}

	roleID, err := s.directory.RoleOf(ctx, ec.UserID)
	if err != nil {
		s.logger.Error("role lookup failed", "user_id", ec.UserID, "error", err)
		return deny(reasonEvaluationError)
	}

	rules, err := s.resolver.Resolve(ctx, roleID, ec.Resource, ec.Action)
	if err != nil {
		s.logger.Error("rule resolution failed", "role_id", roleID, "resource", ec.Resource, "action", ec.Action, "error", err)
		return deny(reasonEvaluationError)
	}
	if len(rules) == 0 {
		// The base permission stands unconditionally for this pair.
		return authz.EvaluationResult{Allowed: true, Reason: reasonNoRules}
	}

	in := CheckInput{
		UserID:       ec.UserID,
		Resource:     ec.Resource,
		ResourceData: s.resourceData(ctx, ec),
		VenueID:      ec.VenueID,
	}

	// Cross-rule aggregation is a pure OR: any rule passing permits the
	// action. Diagnostics come from the path that determined the outcome.
	var allFailed []authz.ConditionKind
	for _, rule := range rules {
		passed, passedKinds, failedKinds := s.evaluateRule(ctx, rule, in)
		if passed {
			return authz.EvaluationResult{
				Allowed:          true,
				PassedConditions: passedKinds,
				FailedConditions: failedKinds,
			}
		}
		allFailed = appendUniqueKinds(allFailed, failedKinds)
	}

	return authz.EvaluationResult{
		Allowed:          false,
		Reason:           reasonNoRuleSatisfied,
		FailedConditions: allFailed,
	}
}

// resourceData returns the record conditions will read: the caller's
// pre-fetched data when supplied, otherwise a single fetch by resource
// id. A fetch failure yields nil, which makes every data-dependent
// condition fail closed.
func (s *EvaluationService) resourceData(ctx context.Context, ec authz.EvaluationContext) map[string]any {
	if ec.ResourceData != nil {
		return ec.ResourceData
	}
	if ec.ResourceID == "" {
		return nil
	}
	data, ok := s.resources.FetchResourceData(ctx, ec.Resource, ec.ResourceID)
	if !ok {
		s.logger.Warn("resource data unavailable", "resource", ec.Resource, "resource_id", ec.ResourceID)
		return nil
	}
	return data
}

// evaluateRule checks every condition of a rule (no short-circuit, so
// diagnostics list the full picture) and aggregates per RequireAll.
// A rule with no conditions passes; the default table is the only source
// that can contain one, since rule administration rejects them at write.
func (s *EvaluationService) evaluateRule(ctx context.Context, rule authz.ConditionalRule, in CheckInput) (bool, []authz.ConditionKind, []authz.ConditionKind) {
	var passedKinds, failedKinds []authz.ConditionKind
	for _, cond := range rule.Conditions {
		result := s.conditions.Check(ctx, cond, in)
		if result.Passed {
			passedKinds = append(passedKinds, cond.Kind)
		} else {
			failedKinds = append(failedKinds, cond.Kind)
		}
	}

	if rule.RequireAll {
		return len(failedKinds) == 0, passedKinds, failedKinds
	}
	return len(passedKinds) > 0 || len(rule.Conditions) == 0, passedKinds, failedKinds
}

func deny(reason string) authz.EvaluationResult {
	return authz.EvaluationResult{Allowed: false, Reason: reason}
}

func appendUniqueKinds(dst, src []authz.ConditionKind) []authz.ConditionKind {
	for _, k := range src {
		seen := false
		for _, existing := range dst {
			if existing == k {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, k)
		}
	}
	return dst
}
