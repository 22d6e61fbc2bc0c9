package cel

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func newTestRegistry(t *testing.T) *PredicateRegistry {
	t.Helper()
	r, err := NewPredicateRegistry()
	if err != nil {
		t.Fatalf("NewPredicateRegistry returned error: %v", err)
	}
	return r
}

func TestRegisterAndEval(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Register("same_venue", `venue_id != "" && resource["venue_id"] == venue_id`); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if !r.Has("same_venue") {
		t.Error("registered predicate not reported by Has")
	}

	ok, err := r.Eval(context.Background(), "same_venue", "user-1", "venue-a", map[string]any{"venue_id": "venue-a"})
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if !ok {
		t.Error("predicate evaluated false for matching venues")
	}

	ok, err = r.Eval(context.Background(), "same_venue", "user-1", "venue-b", map[string]any{"venue_id": "venue-a"})
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if ok {
		t.Error("predicate evaluated true for mismatched venues")
	}
}

func TestEvalUnregisteredPredicate(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Eval(context.Background(), "ghost", "user-1", "", nil)
	if !errors.Is(err, ErrPredicateNotRegistered) {
		t.Errorf("Eval(ghost) = %v, want ErrPredicateNotRegistered", err)
	}
}

func TestEvalNilResourceData(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Register("has_status", `"status" in resource`); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	ok, err := r.Eval(context.Background(), "has_status", "user-1", "", nil)
	if err != nil {
		t.Fatalf("Eval with nil data returned error: %v", err)
	}
	if ok {
		t.Error("empty resource map reported a status key")
	}
}

func TestRegisterRejectsInvalidExpressions(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"syntax error", `resource[`},
		{"unknown variable", `session_id == "x"`},
		{"too long", strings.Repeat("user_id == user_id && ", 60) + "true"},
		{"nesting too deep", strings.Repeat("(", 51) + "true" + strings.Repeat(")", 51)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Register("bad", tt.expr); err == nil {
				t.Errorf("Register accepted %s expression", tt.name)
			}
		})
	}
	if r.Has("bad") {
		t.Error("rejected expression was stored")
	}
}

func TestRegisterEmptyName(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Register("", "true"); err == nil {
		t.Error("Register accepted an empty name")
	}
}

func TestEvalNonBooleanResult(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Register("gives_string", `user_id`); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if _, err := r.Eval(context.Background(), "gives_string", "user-1", "", nil); err == nil {
		t.Error("non-boolean predicate result did not error")
	}
}

func TestNames(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Register("a", "true"); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if err := r.Register("b", "false"); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	names := r.Names()
	if len(names) != 2 {
		t.Errorf("Names() = %v, want two entries", names)
	}
}
