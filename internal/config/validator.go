package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rosterops/rostergate/internal/domain/auth"
)

// RegisterCustomValidators registers rostergate-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	// argon2id_hash: validates PHC-format Argon2id hashes
	if err := v.RegisterValidation("argon2id_hash", validateArgon2idHash); err != nil {
		return fmt.Errorf("failed to register argon2id_hash validator: %w", err)
	}
	return nil
}

// validateArgon2idHash rejects key hashes that are not PHC-format
// Argon2id, so a raw key pasted into the config fails at startup instead
// of never matching at request time.
func validateArgon2idHash(fl validator.FieldLevel) bool {
	return auth.IsArgon2idHash(fl.Field().String())
}

// Validate validates the Config using struct tags and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		return errors.New("store: path is required for the sqlite driver")
	}

	if err := c.validatePredicateNames(); err != nil {
		return err
	}

	return nil
}

// validatePredicateNames ensures predicate names are unique.
func (c *Config) validatePredicateNames() error {
	seen := make(map[string]bool, len(c.Predicates))
	for _, p := range c.Predicates {
		if seen[p.Name] {
			return fmt.Errorf("predicates: duplicate name %q", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// formatValidationErrors converts validator errors into actionable messages.
func formatValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Namespace()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Namespace(), fe.Param()))
		case "argon2id_hash":
			msgs = append(msgs, fmt.Sprintf("%s must be an Argon2id PHC hash (generate with `rostergate hash-key`)", fe.Namespace()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag()))
		}
	}
	return errors.New("invalid configuration: " + strings.Join(msgs, "; "))
}
