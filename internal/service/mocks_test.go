package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/rosterops/rostergate/internal/domain/authz"
	"github.com/rosterops/rostergate/internal/domain/schedule"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockDirectory implements authz.Directory with injectable answers and
// errors.
type mockDirectory struct {
	admins      map[string]bool
	roles       map[string]string
	venues      map[string][]string
	attributes  map[string]map[string]any
	venueGrants map[string]map[string]bool // userID -> "resource/venue" -> granted
	permissions map[string]map[string]bool // userID -> "resource:action" -> granted

	adminErr error
	roleErr  error
	venueErr error
	attrErr  error
	grantErr error
	permErr  error
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		admins:      make(map[string]bool),
		roles:       make(map[string]string),
		venues:      make(map[string][]string),
		attributes:  make(map[string]map[string]any),
		venueGrants: make(map[string]map[string]bool),
		permissions: make(map[string]map[string]bool),
	}
}

func (m *mockDirectory) IsAdmin(_ context.Context, userID string) (bool, error) {
	if m.adminErr != nil {
		return false, m.adminErr
	}
	return m.admins[userID], nil
}

func (m *mockDirectory) HasBasePermission(_ context.Context, userID, resource, action, _ string) (bool, error) {
	if m.permErr != nil {
		return false, m.permErr
	}
	return m.permissions[userID][resource+":"+action], nil
}

func (m *mockDirectory) RoleOf(_ context.Context, userID string) (string, error) {
	if m.roleErr != nil {
		return "", m.roleErr
	}
	return m.roles[userID], nil
}

func (m *mockDirectory) UserVenues(_ context.Context, userID string) ([]string, error) {
	if m.venueErr != nil {
		return nil, m.venueErr
	}
	return m.venues[userID], nil
}

func (m *mockDirectory) FetchUserAttribute(_ context.Context, userID, field string) (any, bool, error) {
	if m.attrErr != nil {
		return nil, false, m.attrErr
	}
	v, ok := m.attributes[userID][field]
	return v, ok, nil
}

func (m *mockDirectory) HasVenueGrant(_ context.Context, userID, resource, venueID string) (bool, error) {
	if m.grantErr != nil {
		return false, m.grantErr
	}
	return m.venueGrants[userID][resource+"/"+venueID], nil
}

var _ authz.Directory = (*mockDirectory)(nil)

// mockWindowStore implements schedule.TimeWindowStore over a slice, with an
// injectable list error.
type mockWindowStore struct {
	mu      sync.Mutex
	windows []schedule.TimeWindowRule
	listErr error
	nextID  int
}

func (m *mockWindowStore) CreateWindow(_ context.Context, w *schedule.TimeWindowRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.ID == "" {
		m.nextID++
		w.ID = fmt.Sprintf("w%d", m.nextID)
	}
	m.windows = append(m.windows, *w)
	return nil
}

func (m *mockWindowStore) ListWindows(_ context.Context, roleID string) ([]schedule.TimeWindowRule, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []schedule.TimeWindowRule
	for _, w := range m.windows {
		if w.RoleID == roleID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *mockWindowStore) ListWindowsForResource(_ context.Context, roleID, resource string) ([]schedule.TimeWindowRule, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []schedule.TimeWindowRule
	for _, w := range m.windows {
		if w.RoleID == roleID && w.AppliesTo(resource) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *mockWindowStore) DeleteWindow(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, w := range m.windows {
		if w.ID == id {
			m.windows = append(m.windows[:i], m.windows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

var _ schedule.TimeWindowStore = (*mockWindowStore)(nil)

// mockRuleStore implements authz.RuleStore over a slice, counting List
// calls so cache behavior is observable.
type mockRuleStore struct {
	mu        sync.Mutex
	rules     []authz.ConditionalRule
	listErr   error
	listCalls int
	nextID    int
}

func (m *mockRuleStore) CreateRule(_ context.Context, r *authz.ConditionalRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		m.nextID++
		r.ID = fmt.Sprintf("r%d", m.nextID)
	}
	r.Origin = authz.OriginPersisted
	m.rules = append(m.rules, *r)
	return nil
}

func (m *mockRuleStore) ListRules(_ context.Context, roleID string) ([]authz.ConditionalRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []authz.ConditionalRule
	for _, r := range m.rules {
		if r.RoleID == roleID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRuleStore) DeleteRule(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rules {
		if r.ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

var _ authz.RuleStore = (*mockRuleStore)(nil)

// mockResourceStore implements authz.ResourceStore keyed by "resource/id".
type mockResourceStore struct {
	records map[string]map[string]any
}

func (m *mockResourceStore) FetchResourceData(_ context.Context, resource, resourceID string) (map[string]any, bool) {
	data, ok := m.records[resource+"/"+resourceID]
	return data, ok
}

var _ authz.ResourceStore = (*mockResourceStore)(nil)
