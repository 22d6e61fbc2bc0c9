// Package config provides configuration types for rostergate.
package config

import (
	"log/slog"
)

// Config is the top-level configuration for the rostergate server.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Store configures rule persistence.
	Store StoreConfig `yaml:"store" mapstructure:"store"`

	// Auth configures admin API keys for remote access.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Predicates registers named CEL predicates for "custom" conditions.
	// A custom condition referencing an unregistered name always fails.
	Predicates []PredicateConfig `yaml:"predicates" mapstructure:"predicates" validate:"omitempty,dive"`

	// Directory seeds the in-process user directory. In production the
	// directory is the external identity system; this section exists for
	// development and self-contained deployments.
	Directory DirectoryConfig `yaml:"directory" mapstructure:"directory"`

	// Seed creates persisted rules at startup for roles that have none yet.
	Seed SeedConfig `yaml:"seed" mapstructure:"seed"`

	// DevMode enables development defaults (verbose logging, memory store).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server listener.
type ServerConfig struct {
	// HTTPAddr is the listen address, e.g. ":8080".
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"required"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// StoreConfig configures rule persistence.
type StoreConfig struct {
	// Driver selects the rule store backend.
	Driver string `yaml:"driver" mapstructure:"driver" validate:"required,oneof=memory sqlite"`
	// Path is the SQLite database file. Required for the sqlite driver.
	Path string `yaml:"path" mapstructure:"path"`
}

// AuthConfig configures admin API access.
type AuthConfig struct {
	// AdminKeys are Argon2id hashes of accepted admin API keys (generate
	// with `rostergate hash-key`). Requests from localhost bypass key auth.
	AdminKeys []AdminKeyConfig `yaml:"admin_keys" mapstructure:"admin_keys" validate:"omitempty,dive"`
}

// AdminKeyConfig is one accepted admin API key.
type AdminKeyConfig struct {
	// ID is a human-readable label for the key.
	ID string `yaml:"id" mapstructure:"id" validate:"required"`
	// KeyHash is the Argon2id PHC-format hash of the raw key.
	KeyHash string `yaml:"key_hash" mapstructure:"key_hash" validate:"required,argon2id_hash"`
}

// PredicateConfig is one named CEL predicate for custom conditions.
// Expressions see user_id, venue_id, and the resource field map.
type PredicateConfig struct {
	Name       string `yaml:"name" mapstructure:"name" validate:"required"`
	Expression string `yaml:"expression" mapstructure:"expression" validate:"required"`
}

// DirectoryConfig seeds the in-process user directory.
type DirectoryConfig struct {
	Users []UserConfig `yaml:"users" mapstructure:"users" validate:"omitempty,dive"`
}

// UserConfig is one seeded directory entry.
type UserConfig struct {
	ID    string `yaml:"id" mapstructure:"id" validate:"required"`
	Role  string `yaml:"role" mapstructure:"role"`
	Admin bool   `yaml:"admin" mapstructure:"admin"`
	// Venues the user belongs to.
	Venues []string `yaml:"venues" mapstructure:"venues"`
	// Attributes readable by user_attribute conditions.
	Attributes map[string]any `yaml:"attributes" mapstructure:"attributes"`
	// Permissions are "resource:action" base grants ("resource:*" and
	// "*:*" wildcards accepted).
	Permissions []string `yaml:"permissions" mapstructure:"permissions"`
	// VenueGrants are venue-scoped grants for venue_role conditions.
	VenueGrants []VenueGrantConfig `yaml:"venue_grants" mapstructure:"venue_grants" validate:"omitempty,dive"`
}

// VenueGrantConfig is one venue-scoped grant.
type VenueGrantConfig struct {
	Resource string `yaml:"resource" mapstructure:"resource" validate:"required"`
	VenueID  string `yaml:"venue_id" mapstructure:"venue_id" validate:"required"`
}

// SeedConfig declares rules to persist at startup. Seeding is skipped for
// any role that already has persisted rules, so restarts do not duplicate.
type SeedConfig struct {
	Rules []SeedRuleConfig `yaml:"rules" mapstructure:"rules" validate:"omitempty,dive"`
}

// SeedRuleConfig is one seeded conditional rule. It passes through the same
// write-time validation as rules created over the API.
type SeedRuleConfig struct {
	Role       string                `yaml:"role" mapstructure:"role" validate:"required"`
	Resource   string                `yaml:"resource" mapstructure:"resource" validate:"required"`
	Action     string                `yaml:"action" mapstructure:"action" validate:"required"`
	Conditions []SeedConditionConfig `yaml:"conditions" mapstructure:"conditions" validate:"required,min=1,dive"`
	// RequireAll defaults to true when omitted.
	RequireAll *bool `yaml:"require_all" mapstructure:"require_all"`
}

// SeedConditionConfig is one condition of a seeded rule.
type SeedConditionConfig struct {
	Kind     string `yaml:"kind" mapstructure:"kind" validate:"required"`
	Value    any    `yaml:"value" mapstructure:"value"`
	Field    string `yaml:"field" mapstructure:"field"`
	Operator string `yaml:"operator" mapstructure:"operator"`
}

// SetDefaults applies default values for optional fields.
func (c *Config) SetDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
}

// SetDevDefaults applies permissive defaults when DevMode is set.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	c.Server.LogLevel = "debug"
}

// LogLevel converts the configured level string to a slog.Level.
func (c *Config) LogLevel() slog.Level {
	switch c.Server.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
