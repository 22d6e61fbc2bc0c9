// Package authz contains domain types for conditional authorization.
//
// A conditional rule narrows an already-granted base permission: it never
// grants access on its own. Evaluation is fail-closed throughout: any
// missing input, unknown condition kind, or data-layer error produces a
// denial, never a permit.
package authz

import "time"

// ConditionKind identifies one atomic check type. The set is closed;
// every consumer dispatches with an exhaustive switch whose default
// branch fails closed.
type ConditionKind string

const (
	// KindVenueMatch passes when the acting user belongs to the venue the
	// action is performed at and that venue equals the resource's venue.
	KindVenueMatch ConditionKind = "venue_match"
	// KindStatusIn passes when the resource status is in the configured list.
	KindStatusIn ConditionKind = "status_in"
	// KindStatusNotIn passes when the resource status is not in the list.
	KindStatusNotIn ConditionKind = "status_not_in"
	// KindOwnRecord passes when the resource's owner field equals the acting user.
	KindOwnRecord ConditionKind = "own_record"
	// KindNotOwnRecord passes when the resource's owner field differs from
	// the acting user. Complements KindOwnRecord for the same inputs.
	KindNotOwnRecord ConditionKind = "not_own_record"
	// KindResourceField compares a named resource field against a value.
	KindResourceField ConditionKind = "resource_field"
	// KindUserAttribute compares a named attribute of the acting user's own record.
	KindUserAttribute ConditionKind = "user_attribute"
	// KindVenueRole passes when the user holds a venue-scoped grant for the
	// configured resource at the given venue.
	KindVenueRole ConditionKind = "venue_role"
	// KindTimeRange delegates to the time-window evaluator.
	KindTimeRange ConditionKind = "time_range"
	// KindDayOfWeek delegates to the time-window evaluator.
	KindDayOfWeek ConditionKind = "day_of_week"
	// KindCustom dispatches to a caller-registered named predicate.
	// An unregistered predicate name fails closed.
	KindCustom ConditionKind = "custom"
)

// KnownKind reports whether k is a member of the closed condition kind set.
func KnownKind(k ConditionKind) bool {
	switch k {
	case KindVenueMatch, KindStatusIn, KindStatusNotIn,
		KindOwnRecord, KindNotOwnRecord,
		KindResourceField, KindUserAttribute, KindVenueRole,
		KindTimeRange, KindDayOfWeek, KindCustom:
		return true
	}
	return false
}

// Operator is a comparison operator for resource_field and user_attribute
// conditions. The zero value is treated as OpEquals.
type Operator string

const (
	OpEquals       Operator = "eq"
	OpNotEquals    Operator = "neq"
	OpIn           Operator = "in"
	OpNotIn        Operator = "not_in"
	OpGreater      Operator = "gt"
	OpLess         Operator = "lt"
	OpGreaterEqual Operator = "gte"
	OpLessEqual    Operator = "lte"
)

// KnownOperator reports whether op is a supported comparison operator.
// The empty string is accepted as the equals default.
func KnownOperator(op Operator) bool {
	switch op {
	case "", OpEquals, OpNotEquals, OpIn, OpNotIn,
		OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		return true
	}
	return false
}

// ConditionDefinition is one atomic check within a rule. Immutable once
// constructed; carries no identity.
type ConditionDefinition struct {
	// Kind selects the evaluation branch.
	Kind ConditionKind `yaml:"kind" json:"kind" validate:"required,condition_kind"`
	// Value is a kind-dependent payload: a status list for status_in/status_not_in,
	// a comparison operand for resource_field/user_attribute, a resource name for
	// venue_role, a predicate name for custom.
	Value any `yaml:"value,omitempty" json:"value,omitempty"`
	// Field names the resource or user attribute to read, where applicable.
	Field string `yaml:"field,omitempty" json:"field,omitempty"`
	// Operator applies to resource_field and user_attribute. Empty means equals.
	Operator Operator `yaml:"operator,omitempty" json:"operator,omitempty" validate:"condition_operator"`
}

// RuleOrigin distinguishes where a resolved rule came from. Diagnostics
// only; aggregation is a pure OR so origin never affects the outcome.
type RuleOrigin string

const (
	OriginDefault   RuleOrigin = "default"
	OriginPersisted RuleOrigin = "persisted"
)

// ConditionalRule bundles conditions that further restrict an
// already-granted base permission for one (resource, action) pair.
type ConditionalRule struct {
	ID       string `json:"id,omitempty"`
	RoleID   string `json:"role_id,omitempty"`
	Resource string `yaml:"resource" json:"resource" validate:"required"`
	Action   string `yaml:"action" json:"action" validate:"required"`
	// Conditions are evaluated in order. An empty list is degenerate and
	// treated as "always passes"; Rule Administration refuses to persist one.
	Conditions []ConditionDefinition `yaml:"conditions" json:"conditions" validate:"dive"`
	// RequireAll selects AND (true) versus OR (false) across Conditions.
	RequireAll bool       `yaml:"require_all" json:"require_all"`
	Origin     RuleOrigin `json:"origin,omitempty"`
	CreatedAt  time.Time  `json:"created_at,omitempty"`
}

// EvaluationContext carries everything one Evaluate call needs. Created
// fresh per call; no persisted identity.
type EvaluationContext struct {
	UserID   string `json:"user_id"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
	// ResourceID identifies the resource instance for lazy data fetch.
	ResourceID string `json:"resource_id,omitempty"`
	// ResourceData, when pre-fetched by the caller, is used as-is and is
	// never re-fetched mid-evaluation.
	ResourceData map[string]any `json:"resource_data,omitempty"`
	// VenueID is the venue the action is performed at, distinct from the
	// resource's own venue field.
	VenueID string `json:"venue_id,omitempty"`
}

// EvaluationResult is the outcome of one Evaluate call. The condition kind
// lists are diagnostics only and never feed back into control flow.
type EvaluationResult struct {
	Allowed          bool            `json:"allowed"`
	Reason           string          `json:"reason,omitempty"`
	PassedConditions []ConditionKind `json:"passed_conditions,omitempty"`
	FailedConditions []ConditionKind `json:"failed_conditions,omitempty"`
}

// CheckResult is the outcome of evaluating a single condition.
type CheckResult struct {
	Passed bool
	Reason string
}
