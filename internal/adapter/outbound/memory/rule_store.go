// Package memory provides in-memory store adapters. Thread-safe; used for
// development and tests, and as the default store when no database path is
// configured.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rosterops/rostergate/internal/domain/authz"
)

// ErrRuleNotFound is returned by lookups for an unknown rule ID.
var ErrRuleNotFound = errors.New("rule not found")

// RuleStore implements authz.RuleStore with an in-memory map.
type RuleStore struct {
	mu    sync.RWMutex
	rules map[string]*authz.ConditionalRule // ID -> rule
}

// NewRuleStore creates an empty in-memory rule store.
func NewRuleStore() *RuleStore {
	return &RuleStore{rules: make(map[string]*authz.ConditionalRule)}
}

// CreateRule persists a rule, assigning a UUID when the ID is empty.
func (s *RuleStore) CreateRule(ctx context.Context, r *authz.ConditionalRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.Origin = authz.OriginPersisted
	s.rules[r.ID] = copyRule(r)
	return nil
}

// ListRules returns all persisted rules for a role.
func (s *RuleStore) ListRules(ctx context.Context, roleID string) ([]authz.ConditionalRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []authz.ConditionalRule
	for _, r := range s.rules {
		if r.RoleID == roleID {
			result = append(result, *copyRule(r))
		}
	}
	return result, nil
}

// DeleteRule removes a rule by ID. Returns false when no rule had that ID.
func (s *RuleStore) DeleteRule(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return false, nil
	}
	delete(s.rules, id)
	return true, nil
}

// copyRule creates a deep copy so callers cannot mutate stored state.
func copyRule(r *authz.ConditionalRule) *authz.ConditionalRule {
	ruleCopy := *r
	ruleCopy.Conditions = make([]authz.ConditionDefinition, len(r.Conditions))
	copy(ruleCopy.Conditions, r.Conditions)
	return &ruleCopy
}

// Compile-time interface verification.
var _ authz.RuleStore = (*RuleStore)(nil)
