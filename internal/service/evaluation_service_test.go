package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rosterops/rostergate/internal/domain/authz"
)

type evaluationFixture struct {
	service   *EvaluationService
	directory *mockDirectory
	rules     *mockRuleStore
	resources *mockResourceStore
}

func newEvaluationFixture(t *testing.T) *evaluationFixture {
	t.Helper()
	dir := newMockDirectory()
	ruleStore := &mockRuleStore{}
	resources := &mockResourceStore{records: make(map[string]map[string]any)}

	resolver, err := NewRuleResolver(ruleStore, testLogger())
	if err != nil {
		t.Fatalf("NewRuleResolver returned error: %v", err)
	}
	timeWindows := NewTimeWindowService(&mockWindowStore{}, dir, testLogger())
	conditions := NewConditionEvaluator(dir, timeWindows, nil, nil, testLogger())
	svc := NewEvaluationService(dir, resources, resolver, conditions, nil, testLogger())

	return &evaluationFixture{service: svc, directory: dir, rules: ruleStore, resources: resources}
}

// grantApprover seeds a venue manager with the base permission and venue
// membership needed to reach conditional evaluation for timeoff:approve.
func (f *evaluationFixture) grantApprover(userID string) {
	f.directory.roles[userID] = "venue_manager"
	f.directory.venues[userID] = []string{"venue-a"}
	f.directory.permissions[userID] = map[string]bool{"timeoff:approve": true}
}

func TestEvaluateAdminBypass(t *testing.T) {
	f := newEvaluationFixture(t)
	f.directory.admins["root-1"] = true

	result := f.service.Evaluate(context.Background(), authz.EvaluationContext{
		UserID: "root-1", Resource: "timeoff", Action: "approve",
	})
	if !result.Allowed {
		t.Fatalf("admin denied: %s", result.Reason)
	}
	if result.Reason != "administrator override" {
		t.Errorf("unexpected reason %q", result.Reason)
	}
}

func TestEvaluateNoBasePermission(t *testing.T) {
	f := newEvaluationFixture(t)
	f.directory.roles["user-1"] = "crew"

	result := f.service.Evaluate(context.Background(), authz.EvaluationContext{
		UserID: "user-1", Resource: "timeoff", Action: "approve",
	})
	if result.Allowed {
		t.Fatal("user without base permission was allowed")
	}
	if result.Reason != "no base permission" {
		t.Errorf("unexpected reason %q", result.Reason)
	}
}

func TestEvaluateNoRulesMeansBaseGrantStands(t *testing.T) {
	f := newEvaluationFixture(t)
	f.directory.roles["user-1"] = "crew"
	f.directory.permissions["user-1"] = map[string]bool{"inventory:view": true}

	result := f.service.Evaluate(context.Background(), authz.EvaluationContext{
		UserID: "user-1", Resource: "inventory", Action: "view",
	})
	if !result.Allowed {
		t.Fatalf("unconditioned base permission denied: %s", result.Reason)
	}
	if result.Reason != "no conditional rules configured" {
		t.Errorf("unexpected reason %q", result.Reason)
	}
}

func TestEvaluateTimeoffApprove(t *testing.T) {
	// Exercises the built-in timeoff:approve default: not_own_record AND
	// venue_match.
	f := newEvaluationFixture(t)
	f.grantApprover("manager-1")

	othersRequest := map[string]any{"owner_id": "crew-9", "venue_id": "venue-a", "status": "PENDING_REVIEW"}
	ownRequest := map[string]any{"owner_id": "manager-1", "venue_id": "venue-a", "status": "PENDING_REVIEW"}

	t.Run("approving another user's request", func(t *testing.T) {
		result := f.service.Evaluate(context.Background(), authz.EvaluationContext{
			UserID: "manager-1", Resource: "timeoff", Action: "approve",
			VenueID: "venue-a", ResourceData: othersRequest,
		})
		if !result.Allowed {
			t.Fatalf("denied: %s (failed: %v)", result.Reason, result.FailedConditions)
		}
		if len(result.PassedConditions) != 2 {
			t.Errorf("passed conditions = %v, want both", result.PassedConditions)
		}
	})

	t.Run("self-approval denied", func(t *testing.T) {
		result := f.service.Evaluate(context.Background(), authz.EvaluationContext{
			UserID: "manager-1", Resource: "timeoff", Action: "approve",
			VenueID: "venue-a", ResourceData: ownRequest,
		})
		if result.Allowed {
			t.Fatal("self-approval was allowed")
		}
		if len(result.FailedConditions) != 1 || result.FailedConditions[0] != authz.KindNotOwnRecord {
			t.Errorf("failed conditions = %v, want [not_own_record]", result.FailedConditions)
		}
	})

	t.Run("cross-venue approval denied", func(t *testing.T) {
		result := f.service.Evaluate(context.Background(), authz.EvaluationContext{
			UserID: "manager-1", Resource: "timeoff", Action: "approve",
			VenueID: "venue-b", ResourceData: map[string]any{"owner_id": "crew-9", "venue_id": "venue-b"},
		})
		if result.Allowed {
			t.Fatal("approval at a foreign venue was allowed")
		}
	})
}

func TestEvaluateCrossRuleOr(t *testing.T) {
	// Two persisted rules for the same pair: the first always fails, the
	// second passes. Any passing rule must permit the action.
	f := newEvaluationFixture(t)
	f.directory.roles["user-1"] = "shift_lead"
	f.directory.permissions["user-1"] = map[string]bool{"report:export": true}
	f.rules.rules = []authz.ConditionalRule{
		{
			ID: "r1", RoleID: "shift_lead", Resource: "report", Action: "export",
			RequireAll: true, Origin: authz.OriginPersisted,
			Conditions: []authz.ConditionDefinition{{Kind: authz.KindStatusIn, Value: []any{"NEVER"}}},
		},
		{
			ID: "r2", RoleID: "shift_lead", Resource: "report", Action: "export",
			RequireAll: true, Origin: authz.OriginPersisted,
			Conditions: []authz.ConditionDefinition{{Kind: authz.KindStatusIn, Value: []any{"FINAL"}}},
		},
	}

	result := f.service.Evaluate(context.Background(), authz.EvaluationContext{
		UserID: "user-1", Resource: "report", Action: "export",
		ResourceData: map[string]any{"status": "FINAL"},
	})
	if !result.Allowed {
		t.Fatalf("denied despite a passing rule: %s", result.Reason)
	}

	t.Run("all rules failing denies with aggregate diagnostics", func(t *testing.T) {
		result := f.service.Evaluate(context.Background(), authz.EvaluationContext{
			UserID: "user-1", Resource: "report", Action: "export",
			ResourceData: map[string]any{"status": "DRAFT"},
		})
		if result.Allowed {
			t.Fatal("allowed despite every rule failing")
		}
		if result.Reason != "no conditional rule satisfied" {
			t.Errorf("unexpected reason %q", result.Reason)
		}
		if len(result.FailedConditions) != 1 || result.FailedConditions[0] != authz.KindStatusIn {
			t.Errorf("failed conditions = %v, want deduplicated [status_in]", result.FailedConditions)
		}
	})
}

func TestEvaluateRequireAllFalse(t *testing.T) {
	f := newEvaluationFixture(t)
	f.directory.roles["user-1"] = "shift_lead"
	f.directory.permissions["user-1"] = map[string]bool{"report:export": true}
	f.rules.rules = []authz.ConditionalRule{{
		ID: "r1", RoleID: "shift_lead", Resource: "report", Action: "export",
		RequireAll: false, Origin: authz.OriginPersisted,
		Conditions: []authz.ConditionDefinition{
			{Kind: authz.KindStatusIn, Value: []any{"FINAL"}},
			{Kind: authz.KindOwnRecord},
		},
	}}

	// Status fails but ownership passes; OR within the rule suffices.
	result := f.service.Evaluate(context.Background(), authz.EvaluationContext{
		UserID: "user-1", Resource: "report", Action: "export",
		ResourceData: map[string]any{"status": "DRAFT", "owner_id": "user-1"},
	})
	if !result.Allowed {
		t.Fatalf("denied despite one passing condition under OR: %s", result.Reason)
	}
	if len(result.PassedConditions) != 1 || len(result.FailedConditions) != 1 {
		t.Errorf("diagnostics = passed %v failed %v, want one of each", result.PassedConditions, result.FailedConditions)
	}
}

func TestEvaluateLazyResourceFetch(t *testing.T) {
	f := newEvaluationFixture(t)
	f.grantApprover("manager-1")
	f.resources.records["timeoff/req-7"] = map[string]any{
		"owner_id": "crew-9", "venue_id": "venue-a", "status": "PENDING_REVIEW",
	}

	t.Run("fetched by id", func(t *testing.T) {
		result := f.service.Evaluate(context.Background(), authz.EvaluationContext{
			UserID: "manager-1", Resource: "timeoff", Action: "approve",
			ResourceID: "req-7", VenueID: "venue-a",
		})
		if !result.Allowed {
			t.Fatalf("denied: %s", result.Reason)
		}
	})

	t.Run("missing resource fails closed", func(t *testing.T) {
		result := f.service.Evaluate(context.Background(), authz.EvaluationContext{
			UserID: "manager-1", Resource: "timeoff", Action: "approve",
			ResourceID: "req-404", VenueID: "venue-a",
		})
		if result.Allowed {
			t.Fatal("allowed with unfetchable resource data")
		}
	})

	t.Run("pre-fetched data wins over the store", func(t *testing.T) {
		// The store row would deny (self-approval); the pre-fetched data
		// must be used as-is instead.
		f.resources.records["timeoff/req-8"] = map[string]any{
			"owner_id": "manager-1", "venue_id": "venue-a",
		}
		result := f.service.Evaluate(context.Background(), authz.EvaluationContext{
			UserID: "manager-1", Resource: "timeoff", Action: "approve",
			ResourceID: "req-8", VenueID: "venue-a",
			ResourceData: map[string]any{"owner_id": "crew-9", "venue_id": "venue-a"},
		})
		if !result.Allowed {
			t.Fatalf("pre-fetched data was not honored: %s", result.Reason)
		}
	})
}

func TestEvaluateFailsClosedOnInternalErrors(t *testing.T) {
	t.Run("admin lookup error", func(t *testing.T) {
		f := newEvaluationFixture(t)
		f.directory.adminErr = errors.New("directory down")
		result := f.service.Evaluate(context.Background(), authz.EvaluationContext{
			UserID: "user-1", Resource: "timeoff", Action: "approve",
		})
		if result.Allowed {
			t.Fatal("allowed despite admin lookup error")
		}
		if result.Reason != "evaluation error" {
			t.Errorf("unexpected reason %q", result.Reason)
		}
	})

	t.Run("rule store error", func(t *testing.T) {
		f := newEvaluationFixture(t)
		f.grantApprover("manager-1")
		f.rules.listErr = errors.New("backend down")
		result := f.service.Evaluate(context.Background(), authz.EvaluationContext{
			UserID: "manager-1", Resource: "timeoff", Action: "approve",
			ResourceData: map[string]any{"owner_id": "crew-9", "venue_id": "venue-a"},
			VenueID:      "venue-a",
		})
		if result.Allowed {
			t.Fatal("allowed despite rule store error")
		}
	})

	t.Run("base permission error", func(t *testing.T) {
		f := newEvaluationFixture(t)
		f.directory.permErr = errors.New("directory down")
		result := f.service.Evaluate(context.Background(), authz.EvaluationContext{
			UserID: "user-1", Resource: "timeoff", Action: "approve",
		})
		if result.Allowed {
			t.Fatal("allowed despite base permission error")
		}
	})
}
