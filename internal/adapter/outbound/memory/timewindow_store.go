package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rosterops/rostergate/internal/domain/schedule"
)

// TimeWindowStore implements schedule.TimeWindowStore with an in-memory map.
type TimeWindowStore struct {
	mu      sync.RWMutex
	windows map[string]*schedule.TimeWindowRule // ID -> rule
}

// NewTimeWindowStore creates an empty in-memory time-window store.
func NewTimeWindowStore() *TimeWindowStore {
	return &TimeWindowStore{windows: make(map[string]*schedule.TimeWindowRule)}
}

// CreateWindow persists a rule, assigning a UUID when the ID is empty.
func (s *TimeWindowStore) CreateWindow(ctx context.Context, w *schedule.TimeWindowRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	s.windows[w.ID] = copyWindow(w)
	return nil
}

// ListWindows returns all windows for a role.
func (s *TimeWindowStore) ListWindows(ctx context.Context, roleID string) ([]schedule.TimeWindowRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []schedule.TimeWindowRule
	for _, w := range s.windows {
		if w.RoleID == roleID {
			result = append(result, *copyWindow(w))
		}
	}
	return result, nil
}

// ListWindowsForResource returns the role's windows applying to a resource.
func (s *TimeWindowStore) ListWindowsForResource(ctx context.Context, roleID, resource string) ([]schedule.TimeWindowRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []schedule.TimeWindowRule
	for _, w := range s.windows {
		if w.RoleID == roleID && w.AppliesTo(resource) {
			result = append(result, *copyWindow(w))
		}
	}
	return result, nil
}

// DeleteWindow removes a rule by ID. Returns false when no rule had that ID.
func (s *TimeWindowStore) DeleteWindow(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.windows[id]; !ok {
		return false, nil
	}
	delete(s.windows, id)
	return true, nil
}

// copyWindow creates a deep copy so callers cannot mutate stored state.
func copyWindow(w *schedule.TimeWindowRule) *schedule.TimeWindowRule {
	windowCopy := *w
	windowCopy.DaysOfWeek = make([]int, len(w.DaysOfWeek))
	copy(windowCopy.DaysOfWeek, w.DaysOfWeek)
	return &windowCopy
}

// Compile-time interface verification.
var _ schedule.TimeWindowStore = (*TimeWindowStore)(nil)
