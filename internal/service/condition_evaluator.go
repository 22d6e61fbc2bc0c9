package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rosterops/rostergate/internal/adapter/outbound/cel"
	"github.com/rosterops/rostergate/internal/domain/authz"
)

// defaultOwnerField is read by own_record/not_own_record when the
// condition does not name an owner field.
const defaultOwnerField = "owner_id"

// defaultStatusField is read by status_in/status_not_in when the
// condition does not name a status field.
const defaultStatusField = "status"

// defaultVenueField is the resource field holding the resource's venue.
const defaultVenueField = "venue_id"

// CheckInput carries the per-call inputs a condition check needs beyond
// the condition itself.
type CheckInput struct {
	UserID   string
	Resource string
	// ResourceData is the flat field record fetched once per evaluation,
	// or nil when unavailable. Data-dependent conditions fail on nil.
	ResourceData map[string]any
	// VenueID is the venue the action is performed at.
	VenueID string
}

// ConditionEvaluator evaluates single conditions, dispatching on the
// closed kind set. Every branch that cannot resolve its required inputs
// returns a failed result; no branch defaults to pass on missing data.
type ConditionEvaluator struct {
	directory   authz.Directory
	timeWindows *TimeWindowService
	predicates  *cel.PredicateRegistry
	metrics     *Metrics
	logger      *slog.Logger
}

// NewConditionEvaluator creates a condition evaluator.
func NewConditionEvaluator(directory authz.Directory, timeWindows *TimeWindowService, predicates *cel.PredicateRegistry, metrics *Metrics, logger *slog.Logger) *ConditionEvaluator {
	return &ConditionEvaluator{
		directory:   directory,
		timeWindows: timeWindows,
		predicates:  predicates,
		metrics:     metrics,
		logger:      logger,
	}
}

// Check evaluates one condition against the input.
func (e *ConditionEvaluator) Check(ctx context.Context, cond authz.ConditionDefinition, in CheckInput) authz.CheckResult {
	result := e.check(ctx, cond, in)
	e.metrics.ObserveConditionCheck(string(cond.Kind), result.Passed)
	return result
}

func (e *ConditionEvaluator) check(ctx context.Context, cond authz.ConditionDefinition, in CheckInput) authz.CheckResult {
	switch cond.Kind {
	case authz.KindVenueMatch:
		return e.checkVenueMatch(ctx, cond, in)
	case authz.KindStatusIn:
		return e.checkStatus(cond, in, true)
	case authz.KindStatusNotIn:
		return e.checkStatus(cond, in, false)
	case authz.KindOwnRecord:
		return e.checkOwnership(cond, in, true)
	case authz.KindNotOwnRecord:
		return e.checkOwnership(cond, in, false)
	case authz.KindResourceField:
		return e.checkResourceField(cond, in)
	case authz.KindUserAttribute:
		return e.checkUserAttribute(ctx, cond, in)
	case authz.KindVenueRole:
		return e.checkVenueRole(ctx, cond, in)
	case authz.KindTimeRange, authz.KindDayOfWeek:
		return e.checkTimeWindow(ctx, cond, in)
	case authz.KindCustom:
		return e.checkCustom(ctx, cond, in)
	default:
		e.logger.Warn("unknown condition kind", "kind", cond.Kind)
		return fail(fmt.Sprintf("unknown condition kind %q", cond.Kind))
	}
}

func (e *ConditionEvaluator) checkVenueMatch(ctx context.Context, cond authz.ConditionDefinition, in CheckInput) authz.CheckResult {
	if in.VenueID == "" {
		return fail("no venue in context")
	}
	field := cond.Field
	if field == "" {
		field = defaultVenueField
	}
	raw, ok := in.ResourceData[field]
	if !ok {
		return fail("resource has no venue")
	}
	resourceVenue := toString(raw)
	if resourceVenue == "" {
		return fail("resource has no venue")
	}
	if in.VenueID != resourceVenue {
		return fail("resource belongs to a different venue")
	}

	venues, err := e.directory.UserVenues(ctx, in.UserID)
	if err != nil {
		e.logger.Warn("venue lookup failed", "user_id", in.UserID, "error", err)
		return fail("venue lookup failed")
	}
	for _, v := range venues {
		if v == in.VenueID {
			return pass()
		}
	}
	return fail("user does not belong to the venue")
}

func (e *ConditionEvaluator) checkStatus(cond authz.ConditionDefinition, in CheckInput, wantMember bool) authz.CheckResult {
	field := cond.Field
	if field == "" {
		field = defaultStatusField
	}
	raw, ok := in.ResourceData[field]
	if !ok {
		return fail("resource status is undefined")
	}
	status := toString(raw)

	list := toStringSlice(cond.Value)
	if len(list) == 0 {
		return fail("no status list configured")
	}
	member := false
	for _, s := range list {
		if s == status {
			member = true
			break
		}
	}
	if member == wantMember {
		return pass()
	}
	if wantMember {
		return fail(fmt.Sprintf("status %q is not in the allowed set", status))
	}
	return fail(fmt.Sprintf("status %q is in the excluded set", status))
}

func (e *ConditionEvaluator) checkOwnership(cond authz.ConditionDefinition, in CheckInput, wantOwner bool) authz.CheckResult {
	field := cond.Field
	if field == "" {
		field = defaultOwnerField
	}
	raw, ok := in.ResourceData[field]
	if !ok {
		return fail(fmt.Sprintf("resource has no %s field", field))
	}
	owner := toString(raw)
	if owner == "" {
		return fail(fmt.Sprintf("resource has no %s field", field))
	}
	isOwner := owner == in.UserID
	if isOwner == wantOwner {
		return pass()
	}
	if wantOwner {
		return fail("user does not own the record")
	}
	return fail("user owns the record")
}

func (e *ConditionEvaluator) checkResourceField(cond authz.ConditionDefinition, in CheckInput) authz.CheckResult {
	if cond.Field == "" {
		return fail("no field configured")
	}
	raw, ok := in.ResourceData[cond.Field]
	if !ok {
		return fail(fmt.Sprintf("resource has no %s field", cond.Field))
	}
	return compare(raw, cond.Operator, cond.Value)
}

func (e *ConditionEvaluator) checkUserAttribute(ctx context.Context, cond authz.ConditionDefinition, in CheckInput) authz.CheckResult {
	if cond.Field == "" {
		return fail("no field configured")
	}
	raw, ok, err := e.directory.FetchUserAttribute(ctx, in.UserID, cond.Field)
	if err != nil {
		e.logger.Warn("user attribute fetch failed", "user_id", in.UserID, "field", cond.Field, "error", err)
		return fail("user attribute fetch failed")
	}
	if !ok {
		return fail(fmt.Sprintf("user has no %s attribute", cond.Field))
	}
	return compare(raw, cond.Operator, cond.Value)
}

func (e *ConditionEvaluator) checkVenueRole(ctx context.Context, cond authz.ConditionDefinition, in CheckInput) authz.CheckResult {
	if in.VenueID == "" {
		return fail("no venue in context")
	}
	resource := toString(cond.Value)
	if resource == "" {
		resource = in.Resource
	}
	granted, err := e.directory.HasVenueGrant(ctx, in.UserID, resource, in.VenueID)
	if err != nil {
		e.logger.Warn("venue grant lookup failed", "user_id", in.UserID, "resource", resource, "error", err)
		return fail("venue grant lookup failed")
	}
	if !granted {
		return fail(fmt.Sprintf("user holds no %s grant at the venue", resource))
	}
	return pass()
}

func (e *ConditionEvaluator) checkTimeWindow(ctx context.Context, cond authz.ConditionDefinition, in CheckInput) authz.CheckResult {
	// A temporal condition may scope the window lookup to a different
	// resource key via its value; the context resource is the default.
	resource := toString(cond.Value)
	if resource == "" {
		resource = in.Resource
	}
	result := e.timeWindows.Check(ctx, in.UserID, resource)
	return authz.CheckResult{Passed: result.Passed, Reason: result.Reason}
}

func (e *ConditionEvaluator) checkCustom(ctx context.Context, cond authz.ConditionDefinition, in CheckInput) authz.CheckResult {
	name := toString(cond.Value)
	if name == "" {
		return fail("no predicate configured")
	}
	if e.predicates == nil {
		return fail(fmt.Sprintf("predicate %q is not registered", name))
	}
	ok, err := e.predicates.Eval(ctx, name, in.UserID, in.VenueID, in.ResourceData)
	if err != nil {
		e.logger.Warn("custom predicate failed", "predicate", name, "error", err)
		return fail(fmt.Sprintf("predicate %q failed", name))
	}
	if !ok {
		return fail(fmt.Sprintf("predicate %q denied", name))
	}
	return pass()
}

func pass() authz.CheckResult {
	return authz.CheckResult{Passed: true}
}

func fail(reason string) authz.CheckResult {
	return authz.CheckResult{Passed: false, Reason: reason}
}

// compare applies an operator to a read value and a configured operand.
// Order comparisons require both operands numeric; anything else fails.
func compare(value any, op authz.Operator, operand any) authz.CheckResult {
	switch op {
	case "", authz.OpEquals:
		if equalValues(value, operand) {
			return pass()
		}
		return fail(fmt.Sprintf("%v does not equal %v", value, operand))
	case authz.OpNotEquals:
		if !equalValues(value, operand) {
			return pass()
		}
		return fail(fmt.Sprintf("%v equals %v", value, operand))
	case authz.OpIn:
		for _, item := range toSlice(operand) {
			if equalValues(value, item) {
				return pass()
			}
		}
		return fail(fmt.Sprintf("%v is not in the configured set", value))
	case authz.OpNotIn:
		for _, item := range toSlice(operand) {
			if equalValues(value, item) {
				return fail(fmt.Sprintf("%v is in the configured set", value))
			}
		}
		return pass()
	case authz.OpGreater, authz.OpLess, authz.OpGreaterEqual, authz.OpLessEqual:
		return compareNumeric(value, op, operand)
	default:
		return fail(fmt.Sprintf("unknown operator %q", op))
	}
}

func compareNumeric(value any, op authz.Operator, operand any) authz.CheckResult {
	a, ok := toFloat(value)
	if !ok {
		return fail(fmt.Sprintf("%v is not numeric", value))
	}
	b, ok := toFloat(operand)
	if !ok {
		return fail(fmt.Sprintf("%v is not numeric", operand))
	}
	var passed bool
	switch op {
	case authz.OpGreater:
		passed = a > b
	case authz.OpLess:
		passed = a < b
	case authz.OpGreaterEqual:
		passed = a >= b
	case authz.OpLessEqual:
		passed = a <= b
	}
	if passed {
		return pass()
	}
	return fail(fmt.Sprintf("%v %s %v is false", value, op, operand))
}

// equalValues compares two values, coercing numerics so that an int from
// YAML and a float64 from JSON compare equal. Non-numeric values compare
// by string form.
func equalValues(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	if _, bok := toFloat(b); bok {
		return false
	}
	return toString(a) == toString(b)
}

// toFloat converts common numeric types. Strings are not coerced.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}

// toSlice normalizes a configured set payload. JSON decodes lists as
// []any, YAML as []any or typed slices.
func toSlice(v any) []any {
	switch s := v.(type) {
	case nil:
		return nil
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out
	case []int:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out
	default:
		return []any{v}
	}
}

func toStringSlice(v any) []string {
	items := toSlice(v)
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, toString(item))
	}
	return out
}
