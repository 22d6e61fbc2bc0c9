package config

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/rosterops/rostergate/internal/domain/auth"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

func TestSetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	if cfg.Server.HTTPAddr != ":8080" {
		t.Errorf("default http_addr = %q, want :8080", cfg.Server.HTTPAddr)
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("default log_level = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("default store driver = %q, want memory", cfg.Store.Driver)
	}
}

func TestSetDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.HTTPAddr = ":9090"
	cfg.Store.Driver = "sqlite"
	cfg.SetDefaults()
	if cfg.Server.HTTPAddr != ":9090" {
		t.Errorf("http_addr = %q, want :9090", cfg.Server.HTTPAddr)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("store driver = %q, want sqlite", cfg.Store.Driver)
	}
}

func TestSetDevDefaults(t *testing.T) {
	cfg := validConfig(t)
	cfg.SetDevDefaults()
	if cfg.Server.LogLevel != "info" {
		t.Error("dev defaults applied without dev_mode")
	}

	cfg.DevMode = true
	cfg.SetDevDefaults()
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("dev_mode log_level = %q, want debug", cfg.Server.LogLevel)
	}
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{}
		cfg.Server.LogLevel = tt.level
		if got := cfg.LogLevel(); got != tt.want {
			t.Errorf("LogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

func TestValidateSQLiteRequiresPath(t *testing.T) {
	cfg := validConfig(t)
	cfg.Store.Driver = "sqlite"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("sqlite driver without path passed validation")
	}
	if !strings.Contains(err.Error(), "path") {
		t.Errorf("error %q does not mention the missing path", err)
	}

	cfg.Store.Path = "/var/lib/rostergate/rules.db"
	if err := cfg.Validate(); err != nil {
		t.Errorf("sqlite driver with path failed validation: %v", err)
	}
}

func TestValidateStoreDriver(t *testing.T) {
	cfg := validConfig(t)
	cfg.Store.Driver = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown store driver passed validation")
	}
}

func TestValidateLogLevel(t *testing.T) {
	cfg := validConfig(t)
	cfg.Server.LogLevel = "trace"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown log level passed validation")
	}
}

func TestValidateAdminKeys(t *testing.T) {
	hash, err := auth.HashKey("ops-key")
	if err != nil {
		t.Fatalf("HashKey returned error: %v", err)
	}

	t.Run("valid hash", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Auth.AdminKeys = []AdminKeyConfig{{ID: "ops", KeyHash: hash}}
		if err := cfg.Validate(); err != nil {
			t.Errorf("valid admin key failed validation: %v", err)
		}
	})

	t.Run("raw key instead of hash", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Auth.AdminKeys = []AdminKeyConfig{{ID: "ops", KeyHash: "ops-key"}}
		err := cfg.Validate()
		if err == nil {
			t.Fatal("raw key accepted as key_hash")
		}
		if !strings.Contains(err.Error(), "hash-key") {
			t.Errorf("error %q does not point at the hash-key command", err)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Auth.AdminKeys = []AdminKeyConfig{{KeyHash: hash}}
		if err := cfg.Validate(); err == nil {
			t.Error("admin key without id passed validation")
		}
	})
}

func TestValidatePredicates(t *testing.T) {
	t.Run("duplicate names", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Predicates = []PredicateConfig{
			{Name: "at_capacity", Expression: `resource["headcount"] >= resource["capacity"]`},
			{Name: "at_capacity", Expression: "true"},
		}
		err := cfg.Validate()
		if err == nil {
			t.Fatal("duplicate predicate names passed validation")
		}
		if !strings.Contains(err.Error(), "at_capacity") {
			t.Errorf("error %q does not name the duplicate", err)
		}
	})

	t.Run("missing expression", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Predicates = []PredicateConfig{{Name: "at_capacity"}}
		if err := cfg.Validate(); err == nil {
			t.Error("predicate without expression passed validation")
		}
	})
}

func TestValidateSeedRules(t *testing.T) {
	cfg := validConfig(t)
	cfg.Seed.Rules = []SeedRuleConfig{{
		Role:       "venue_manager",
		Resource:   "roster",
		Action:     "publish",
		Conditions: []SeedConditionConfig{{Kind: "venue_match"}},
	}}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid seed rule failed validation: %v", err)
	}

	cfg.Seed.Rules[0].Conditions = nil
	if err := cfg.Validate(); err == nil {
		t.Error("seed rule without conditions passed validation")
	}

	cfg.Seed.Rules[0].Conditions = []SeedConditionConfig{{Kind: "venue_match"}}
	cfg.Seed.Rules[0].Role = ""
	if err := cfg.Validate(); err == nil {
		t.Error("seed rule without role passed validation")
	}
}

func TestValidateDirectoryUsers(t *testing.T) {
	cfg := validConfig(t)
	cfg.Directory.Users = []UserConfig{{
		ID:          "manager-1",
		Role:        "venue_manager",
		Venues:      []string{"venue-a"},
		Permissions: []string{"timeoff:approve"},
		VenueGrants: []VenueGrantConfig{{Resource: "timeoff", VenueID: "venue-a"}},
	}}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid directory user failed validation: %v", err)
	}

	cfg.Directory.Users = append(cfg.Directory.Users, UserConfig{Role: "orphan"})
	if err := cfg.Validate(); err == nil {
		t.Error("directory user without id passed validation")
	}

	cfg.Directory.Users = cfg.Directory.Users[:1]
	cfg.Directory.Users[0].VenueGrants = []VenueGrantConfig{{Resource: "timeoff"}}
	if err := cfg.Validate(); err == nil {
		t.Error("venue grant without venue_id passed validation")
	}
}
