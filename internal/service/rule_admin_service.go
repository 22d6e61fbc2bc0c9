package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rosterops/rostergate/internal/adapter/outbound/cel"
	"github.com/rosterops/rostergate/internal/domain/authz"
	"github.com/rosterops/rostergate/internal/domain/schedule"
)

// ErrInvalidRule is wrapped by every write-time validation failure.
// Malformed records are rejected here, not discovered as false negatives
// at evaluation time.
var ErrInvalidRule = errors.New("invalid rule")

// RuleAdminService manages persisted conditional rules and time-window
// rules per role. Every write invalidates the resolver cache so the next
// evaluation observes the change.
type RuleAdminService struct {
	rules      authz.RuleStore
	windows    schedule.TimeWindowStore
	predicates *cel.PredicateRegistry
	resolver   interface{ Invalidate() }
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewRuleAdminService creates a rule administration service. The resolver
// may be nil when no evaluation path shares the process (e.g. in tests).
func NewRuleAdminService(rules authz.RuleStore, windows schedule.TimeWindowStore, predicates *cel.PredicateRegistry, resolver interface{ Invalidate() }, logger *slog.Logger) (*RuleAdminService, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := registerRuleValidators(v); err != nil {
		return nil, err
	}
	return &RuleAdminService{
		rules:      rules,
		windows:    windows,
		predicates: predicates,
		resolver:   resolver,
		validate:   v,
		logger:     logger,
	}, nil
}

// registerRuleValidators registers the domain-specific validation rules.
func registerRuleValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("clock", validateClock); err != nil {
		return fmt.Errorf("failed to register clock validator: %w", err)
	}
	if err := v.RegisterValidation("iana_tz", validateTimezone); err != nil {
		return fmt.Errorf("failed to register iana_tz validator: %w", err)
	}
	if err := v.RegisterValidation("condition_kind", validateConditionKind); err != nil {
		return fmt.Errorf("failed to register condition_kind validator: %w", err)
	}
	if err := v.RegisterValidation("condition_operator", validateConditionOperator); err != nil {
		return fmt.Errorf("failed to register condition_operator validator: %w", err)
	}
	return nil
}

// validateClock accepts 24-hour "HH:MM" strings.
func validateClock(fl validator.FieldLevel) bool {
	_, err := schedule.ParseClock(fl.Field().String())
	return err == nil
}

// validateTimezone accepts names the IANA zone database can load.
func validateTimezone(fl validator.FieldLevel) bool {
	_, err := time.LoadLocation(fl.Field().String())
	return err == nil
}

func validateConditionKind(fl validator.FieldLevel) bool {
	return authz.KnownKind(authz.ConditionKind(fl.Field().String()))
}

func validateConditionOperator(fl validator.FieldLevel) bool {
	return authz.KnownOperator(authz.Operator(fl.Field().String()))
}

// CreateRule validates and persists a conditional rule for a role.
func (s *RuleAdminService) CreateRule(ctx context.Context, roleID string, r authz.ConditionalRule) (*authz.ConditionalRule, error) {
	if roleID == "" {
		return nil, fmt.Errorf("%w: role id is required", ErrInvalidRule)
	}
	r.RoleID = roleID
	r.ID = ""

	if err := s.validate.Struct(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if len(r.Conditions) == 0 {
		// An empty condition list would always pass; refuse to persist one.
		return nil, fmt.Errorf("%w: at least one condition is required", ErrInvalidRule)
	}
	for i, cond := range r.Conditions {
		if err := s.validateConditionPayload(cond); err != nil {
			return nil, fmt.Errorf("%w: condition %d: %v", ErrInvalidRule, i, err)
		}
	}

	if err := s.rules.CreateRule(ctx, &r); err != nil {
		return nil, fmt.Errorf("failed to persist rule: %w", err)
	}
	s.invalidate()
	s.logger.Info("conditional rule created", "rule_id", r.ID, "role_id", roleID, "resource", r.Resource, "action", r.Action)
	return &r, nil
}

// validateConditionPayload enforces kind-specific payload shapes beyond
// what struct tags can express.
func (s *RuleAdminService) validateConditionPayload(cond authz.ConditionDefinition) error {
	switch cond.Kind {
	case authz.KindStatusIn, authz.KindStatusNotIn:
		if len(toStringSlice(cond.Value)) == 0 {
			return errors.New("a status list is required")
		}
	case authz.KindResourceField, authz.KindUserAttribute:
		if cond.Field == "" {
			return errors.New("a field name is required")
		}
	case authz.KindCustom:
		name := toString(cond.Value)
		if name == "" {
			return errors.New("a predicate name is required")
		}
		if s.predicates == nil || !s.predicates.Has(name) {
			return fmt.Errorf("predicate %q is not registered", name)
		}
	}
	return nil
}

// ListRules returns the persisted conditional rules for a role.
func (s *RuleAdminService) ListRules(ctx context.Context, roleID string) ([]authz.ConditionalRule, error) {
	return s.rules.ListRules(ctx, roleID)
}

// DeleteRule removes a conditional rule by ID. Deleting an unknown ID is
// not an error; the returned flag reports whether anything was removed.
func (s *RuleAdminService) DeleteRule(ctx context.Context, id string) (bool, error) {
	removed, err := s.rules.DeleteRule(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete rule: %w", err)
	}
	if removed {
		s.invalidate()
		s.logger.Info("conditional rule deleted", "rule_id", id)
	}
	return removed, nil
}

// CreateTimeWindow validates and persists a time-window rule for a role.
func (s *RuleAdminService) CreateTimeWindow(ctx context.Context, roleID string, w schedule.TimeWindowRule) (*schedule.TimeWindowRule, error) {
	if roleID == "" {
		return nil, fmt.Errorf("%w: role id is required", ErrInvalidRule)
	}
	w.RoleID = roleID
	w.ID = ""

	if err := s.validate.Struct(w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	if err := s.windows.CreateWindow(ctx, &w); err != nil {
		return nil, fmt.Errorf("failed to persist time window: %w", err)
	}
	s.invalidate()
	s.logger.Info("time window created", "window_id", w.ID, "role_id", roleID, "resource", w.Resource,
		"start", w.StartTime, "end", w.EndTime, "timezone", w.Timezone)
	return &w, nil
}

// ListTimeWindows returns the persisted time-window rules for a role.
func (s *RuleAdminService) ListTimeWindows(ctx context.Context, roleID string) ([]schedule.TimeWindowRule, error) {
	return s.windows.ListWindows(ctx, roleID)
}

// DeleteTimeWindow removes a time-window rule by ID, idempotently.
func (s *RuleAdminService) DeleteTimeWindow(ctx context.Context, id string) (bool, error) {
	removed, err := s.windows.DeleteWindow(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete time window: %w", err)
	}
	if removed {
		s.invalidate()
		s.logger.Info("time window deleted", "window_id", id)
	}
	return removed, nil
}

func (s *RuleAdminService) invalidate() {
	if s.resolver != nil {
		s.resolver.Invalidate()
	}
}
