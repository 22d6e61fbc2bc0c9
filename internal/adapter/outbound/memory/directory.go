package memory

import (
	"context"
	"sync"

	"github.com/rosterops/rostergate/internal/domain/authz"
)

// VenueGrant is a venue-scoped permission grant held by a user.
type VenueGrant struct {
	Resource string
	VenueID  string
}

// User is one directory entry: role, venue memberships, attributes, and
// venue-scoped grants.
type User struct {
	ID          string
	Role        string
	Admin       bool
	Venues      []string
	Attributes  map[string]any
	VenueGrants []VenueGrant
	// BasePermissions holds "resource:action" strings the user's role grants.
	BasePermissions []string
}

// Directory implements authz.Directory from a fixed user table. It stands
// in for the external role/permission system in development and tests.
type Directory struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewDirectory creates a directory seeded with the given users.
func NewDirectory(users ...User) *Directory {
	d := &Directory{users: make(map[string]*User)}
	for i := range users {
		u := users[i]
		d.users[u.ID] = &u
	}
	return d
}

// AddUser inserts or replaces a directory entry.
func (d *Directory) AddUser(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = &u
}

// IsAdmin reports whether the user is a super-admin.
func (d *Directory) IsAdmin(ctx context.Context, userID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	return ok && u.Admin, nil
}

// HasBasePermission checks the static role grant for (resource, action).
func (d *Directory) HasBasePermission(ctx context.Context, userID, resource, action, venueID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	if !ok {
		return false, nil
	}
	want := resource + ":" + action
	for _, p := range u.BasePermissions {
		if p == want || p == resource+":*" || p == "*:*" {
			return true, nil
		}
	}
	return false, nil
}

// RoleOf returns the user's role ID, or "" for an unknown user.
func (d *Directory) RoleOf(ctx context.Context, userID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if u, ok := d.users[userID]; ok {
		return u.Role, nil
	}
	return "", nil
}

// UserVenues returns the venues the user belongs to.
func (d *Directory) UserVenues(ctx context.Context, userID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	if !ok {
		return nil, nil
	}
	venues := make([]string, len(u.Venues))
	copy(venues, u.Venues)
	return venues, nil
}

// FetchUserAttribute reads one attribute from the user's record.
func (d *Directory) FetchUserAttribute(ctx context.Context, userID, field string) (any, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	if !ok {
		return nil, false, nil
	}
	v, ok := u.Attributes[field]
	return v, ok, nil
}

// HasVenueGrant reports whether the user holds a venue-scoped grant for
// the resource at the given venue.
func (d *Directory) HasVenueGrant(ctx context.Context, userID, resource, venueID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	if !ok {
		return false, nil
	}
	for _, g := range u.VenueGrants {
		if g.Resource == resource && g.VenueID == venueID {
			return true, nil
		}
	}
	return false, nil
}

// ResourceStore implements authz.ResourceStore from a fixed table keyed by
// "resource/id". Development and test use only.
type ResourceStore struct {
	mu      sync.RWMutex
	records map[string]map[string]any
}

// NewResourceStore creates an empty in-memory resource store.
func NewResourceStore() *ResourceStore {
	return &ResourceStore{records: make(map[string]map[string]any)}
}

// PutResource stores a resource record.
func (s *ResourceStore) PutResource(resource, id string, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[resource+"/"+id] = data
}

// FetchResourceData returns the record, or ok=false when absent.
func (s *ResourceStore) FetchResourceData(ctx context.Context, resource, resourceID string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.records[resource+"/"+resourceID]
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out, true
}

// Compile-time interface verification.
var (
	_ authz.Directory     = (*Directory)(nil)
	_ authz.ResourceStore = (*ResourceStore)(nil)
)
