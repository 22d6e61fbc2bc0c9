package authz

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultRulesYAML []byte

var (
	defaultsOnce  sync.Once
	defaultRules  []ConditionalRule
	defaultsError error
)

// DefaultRules returns the built-in conditional rule table. The table is
// parsed once at first use and never mutated afterwards; callers receive
// a fresh copy on every call.
func DefaultRules() ([]ConditionalRule, error) {
	defaultsOnce.Do(func() {
		defaultRules, defaultsError = parseDefaultRules(defaultRulesYAML)
	})
	if defaultsError != nil {
		return nil, defaultsError
	}
	out := make([]ConditionalRule, len(defaultRules))
	copy(out, defaultRules)
	return out, nil
}

func parseDefaultRules(raw []byte) ([]ConditionalRule, error) {
	var doc struct {
		Rules []ConditionalRule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse default rules: %w", err)
	}
	for i := range doc.Rules {
		r := &doc.Rules[i]
		if r.Resource == "" || r.Action == "" {
			return nil, fmt.Errorf("default rule %d: resource and action are required", i)
		}
		for j, c := range r.Conditions {
			if !KnownKind(c.Kind) {
				return nil, fmt.Errorf("default rule %d condition %d: unknown kind %q", i, j, c.Kind)
			}
			if !KnownOperator(c.Operator) {
				return nil, fmt.Errorf("default rule %d condition %d: unknown operator %q", i, j, c.Operator)
			}
		}
		r.Origin = OriginDefault
	}
	return doc.Rules, nil
}
