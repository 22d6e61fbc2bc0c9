// Package schedule contains domain types for time-window restrictions.
package schedule

import (
	"context"
	"fmt"
	"time"
)

// TimeWindowRule describes one allowed access window for a role on a
// resource. Multiple rules for the same (role, resource) pair are
// independent windows: passing any one grants time access.
type TimeWindowRule struct {
	ID     string `json:"id,omitempty"`
	RoleID string `json:"role_id"`
	// Resource scopes the window; MatchAllResources applies it to every resource.
	Resource string `json:"resource" validate:"required"`
	Action   string `json:"action,omitempty"`
	// DaysOfWeek uses Sunday=0 … Saturday=6. An empty set never matches.
	DaysOfWeek []int `json:"days_of_week" validate:"required,min=1,dive,gte=0,lte=6"`
	// StartTime and EndTime are wall-clock "HH:MM" in 24-hour form.
	// StartTime > EndTime denotes an overnight window crossing midnight.
	StartTime string `json:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" validate:"required,clock"`
	// Timezone is an IANA zone name, e.g. "Australia/Sydney".
	Timezone  string    `json:"timezone" validate:"required,iana_tz"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// MatchAllResources is the wildcard resource scope for a time window.
const MatchAllResources = "*"

// AppliesTo reports whether the window covers the given resource.
func (r TimeWindowRule) AppliesTo(resource string) bool {
	return r.Resource == resource || r.Resource == MatchAllResources
}

// TimeCheckResult is the outcome of a time-window check, including the
// observed local day and time for operator troubleshooting.
type TimeCheckResult struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
	// CurrentDay and CurrentTime reflect the wall clock in the zone of the
	// last window examined ("" when no windows were configured).
	CurrentDay  string `json:"current_day,omitempty"`
	CurrentTime string `json:"current_time,omitempty"`
}

// TimeWindowStore persists per-role time-window rules.
type TimeWindowStore interface {
	// CreateWindow persists a rule, assigning an ID when empty.
	CreateWindow(ctx context.Context, w *TimeWindowRule) error
	// ListWindows returns all windows for a role.
	ListWindows(ctx context.Context, roleID string) ([]TimeWindowRule, error)
	// ListWindowsForResource returns the role's windows that apply to the
	// given resource (exact scope or the wildcard scope).
	ListWindowsForResource(ctx context.Context, roleID, resource string) ([]TimeWindowRule, error)
	// DeleteWindow removes a rule by ID. Returns false when absent.
	DeleteWindow(ctx context.Context, id string) (bool, error)
}

// ParseClock parses a 24-hour "HH:MM" string into minutes since midnight.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid clock value %q: want HH:MM", s)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("invalid clock value %q: want HH:MM", s)
		}
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("invalid clock value %q: out of range", s)
	}
	return h*60 + m, nil
}

// WithinWindow reports whether the current minutes-since-midnight falls in
// [start, end], inclusive on both ends. When start > end the window wraps
// past midnight: the current time passes at or after start OR at or before
// end.
func WithinWindow(current, start, end int) bool {
	if start <= end {
		return current >= start && current <= end
	}
	return current >= start || current <= end
}
