package authz

import "context"

// RuleStore persists per-role conditional rule overrides.
// Interface in domain package; adapters implement it (memory, sqlite).
type RuleStore interface {
	// CreateRule persists a rule, assigning an ID when empty.
	CreateRule(ctx context.Context, r *ConditionalRule) error
	// ListRules returns all persisted rules for a role.
	ListRules(ctx context.Context, roleID string) ([]ConditionalRule, error)
	// DeleteRule removes a rule by ID. Returns false when no rule had that
	// ID; deletion is idempotent either way.
	DeleteRule(ctx context.Context, id string) (bool, error)
}

// Directory answers identity questions about the acting user. It fronts
// the external role/permission system; the engine trusts its answers as
// ground truth and treats its errors as absent data (fail-closed).
type Directory interface {
	// IsAdmin reports whether the user is a super-admin. Admins bypass
	// every check, including time windows.
	IsAdmin(ctx context.Context, userID string) (bool, error)
	// HasBasePermission is the static role→(resource, action) grant check.
	HasBasePermission(ctx context.Context, userID, resource, action, venueID string) (bool, error)
	// RoleOf returns the user's role ID, or "" for an unknown user.
	RoleOf(ctx context.Context, userID string) (string, error)
	// UserVenues returns the venues the user belongs to.
	UserVenues(ctx context.Context, userID string) ([]string, error)
	// FetchUserAttribute reads one attribute from the user's own record.
	// ok is false when the user or attribute does not exist.
	FetchUserAttribute(ctx context.Context, userID, field string) (value any, ok bool, err error)
	// HasVenueGrant reports whether the user holds a venue-scoped grant
	// for the resource at the given venue.
	HasVenueGrant(ctx context.Context, userID, resource, venueID string) (bool, error)
}

// ResourceStore fetches the flat field record of a resource instance
// (status, owner id, venue id, and whatever else conditions read).
// A fetch failure is reported as absent data, not an error surface.
type ResourceStore interface {
	// FetchResourceData returns the record, or ok=false when the resource
	// does not exist or the read failed.
	FetchResourceData(ctx context.Context, resource, resourceID string) (data map[string]any, ok bool)
}
