// Package cel provides a CEL-backed registry of named custom-condition
// predicates. A "custom" condition names a predicate; evaluating a name
// that was never registered fails closed.
package cel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
)

// maxExpressionLength is the maximum allowed length for predicate expressions.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit to prevent cost-exhaustion DoS.
const maxCostBudget = 100_000

// maxNestingDepth is the maximum allowed parenthesis/bracket nesting depth.
const maxNestingDepth = 50

// evalTimeout bounds a single predicate evaluation.
const evalTimeout = 5 * time.Second

// interruptCheckFreq is how often (in comprehension iterations) context cancellation is checked.
const interruptCheckFreq = 100

// ErrPredicateNotRegistered is returned when a custom condition names a
// predicate that was never registered.
var ErrPredicateNotRegistered = errors.New("predicate not registered")

// PredicateRegistry compiles and holds named CEL predicates. Registration
// happens at startup (from config); evaluation is read-mostly and safe for
// concurrent use.
type PredicateRegistry struct {
	env      *cel.Env
	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewPredicateEnvironment creates a CEL environment for custom conditions.
// Predicates see the acting user, the venue in context, and the resource's
// flat field record.
func NewPredicateEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("user_id", cel.StringType),
		cel.Variable("venue_id", cel.StringType),
		cel.Variable("resource", cel.MapType(cel.StringType, cel.DynType)),
	)
}

// NewPredicateRegistry creates an empty predicate registry.
func NewPredicateRegistry() (*PredicateRegistry, error) {
	env, err := NewPredicateEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create predicate environment: %w", err)
	}
	return &PredicateRegistry{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Register validates, compiles, and stores a predicate under the given name.
// Re-registering a name replaces the previous predicate.
func (r *PredicateRegistry) Register(name, expression string) error {
	if name == "" {
		return errors.New("predicate name is empty")
	}
	if err := r.ValidateExpression(expression); err != nil {
		return fmt.Errorf("predicate %q: %w", name, err)
	}
	prg, err := r.compile(expression)
	if err != nil {
		return fmt.Errorf("predicate %q: %w", name, err)
	}
	r.mu.Lock()
	r.programs[name] = prg
	r.mu.Unlock()
	return nil
}

// Has reports whether a predicate is registered under the given name.
func (r *PredicateRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.programs[name]
	return ok
}

// Names returns the registered predicate names.
func (r *PredicateRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.programs))
	for n := range r.programs {
		names = append(names, n)
	}
	return names
}

// Eval runs the named predicate. Returns ErrPredicateNotRegistered for an
// unknown name; callers must treat any error as a failed condition.
func (r *PredicateRegistry) Eval(ctx context.Context, name, userID, venueID string, resourceData map[string]any) (bool, error) {
	r.mu.RLock()
	prg, ok := r.programs[name]
	r.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrPredicateNotRegistered, name)
	}

	if resourceData == nil {
		resourceData = map[string]any{}
	}
	activation := map[string]any{
		"user_id":  userID,
		"venue_id": venueID,
		"resource": resourceData,
	}

	evalCtx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(evalCtx, activation)
	if err != nil {
		return false, fmt.Errorf("predicate %q evaluation failed: %w", name, err)
	}

	boolResult, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("predicate %q did not return a boolean, got %T", name, result.Value())
	}
	return boolResult, nil
}

// compile parses and type-checks an expression, returning a compiled program.
func (r *PredicateRegistry) compile(expression string) (cel.Program, error) {
	ast, issues := r.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}
	prg, err := r.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}
	return prg, nil
}

// validateNesting checks that the expression does not exceed the maximum
// allowed nesting depth for parentheses, brackets, and braces.
func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// ValidateExpression checks that an expression is syntactically valid and
// within safety limits. Used at registration and by rule administration
// before persisting a custom condition.
func (r *PredicateRegistry) ValidateExpression(expr string) error {
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	if expr == "" {
		return errors.New("expression is empty")
	}
	if err := validateNesting(expr); err != nil {
		return err
	}
	if _, err := r.compile(expr); err != nil {
		return fmt.Errorf("invalid CEL expression: %w", err)
	}
	return nil
}
