package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/rosterops/rostergate/internal/adapter/inbound/admin"
	"github.com/rosterops/rostergate/internal/adapter/outbound/cel"
	"github.com/rosterops/rostergate/internal/adapter/outbound/memory"
	"github.com/rosterops/rostergate/internal/adapter/outbound/sqlite"
	"github.com/rosterops/rostergate/internal/config"
	"github.com/rosterops/rostergate/internal/domain/auth"
	"github.com/rosterops/rostergate/internal/domain/authz"
	"github.com/rosterops/rostergate/internal/domain/schedule"
	"github.com/rosterops/rostergate/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the authorization server",
	Long: `Start the rostergate authorization server.

The server exposes the evaluation and rule administration API over HTTP.
Requests from localhost are trusted; remote requests must present an admin
API key (see "rostergate hash-key").

Examples:
  # Start with config file settings
  rostergate serve

  # Start with a specific config file
  rostergate --config /path/to/rostergate.yaml serve

  # Start in development mode (debug logging)
  rostergate serve --dev`,
	RunE: runServe,
}

var devMode bool

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (verbose logging)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration without validation so CLI flags can override first.
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Signal context for graceful shutdown. stop() restores default signal
	// handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logLevel := cfg.LogLevel()
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	return run(ctx, cfg, logger)
}

// run wires all components together and serves HTTP until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := service.NewMetrics(registry)

	// Rule persistence: memory or sqlite per config.
	var (
		ruleStore   authz.RuleStore
		windowStore schedule.TimeWindowStore
	)
	switch cfg.Store.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("failed to open rule database: %w", err)
		}
		defer func() { _ = db.Close() }()
		ruleStore = db
		windowStore = db
		logger.Info("rule store: sqlite", "path", cfg.Store.Path)
	default:
		ruleStore = memory.NewRuleStore()
		windowStore = memory.NewTimeWindowStore()
		logger.Info("rule store: memory")
	}

	// Directory and resource data seeded from config.
	directory := memory.NewDirectory(directoryUsersFromConfig(cfg)...)
	resources := memory.NewResourceStore()
	logger.Debug("seeded directory from config", "users", len(cfg.Directory.Users))

	// Named CEL predicates for custom conditions.
	predicates, err := cel.NewPredicateRegistry()
	if err != nil {
		return fmt.Errorf("failed to create predicate registry: %w", err)
	}
	for _, p := range cfg.Predicates {
		if err := predicates.Register(p.Name, p.Expression); err != nil {
			return fmt.Errorf("failed to register predicate %q: %w", p.Name, err)
		}
	}
	if len(cfg.Predicates) > 0 {
		logger.Info("registered predicates", "count", len(cfg.Predicates))
	}

	resolver, err := service.NewRuleResolver(ruleStore, logger,
		service.WithResolverMetrics(metrics),
	)
	if err != nil {
		return fmt.Errorf("failed to create rule resolver: %w", err)
	}

	timeWindows := service.NewTimeWindowService(windowStore, directory, logger,
		service.WithTimeWindowMetrics(metrics),
	)
	conditions := service.NewConditionEvaluator(directory, timeWindows, predicates, metrics, logger)
	evaluation := service.NewEvaluationService(directory, resources, resolver, conditions, metrics, logger)

	ruleAdmin, err := service.NewRuleAdminService(ruleStore, windowStore, predicates, resolver, logger)
	if err != nil {
		return fmt.Errorf("failed to create rule admin service: %w", err)
	}

	if err := seedRules(ctx, cfg, ruleAdmin, logger); err != nil {
		return err
	}

	hashes := make([]string, 0, len(cfg.Auth.AdminKeys))
	for _, k := range cfg.Auth.AdminKeys {
		hashes = append(hashes, k.KeyHash)
	}
	verifier := auth.NewKeyVerifier(hashes)

	apiHandler := admin.NewAPIHandler(
		admin.WithEvaluationService(evaluation),
		admin.WithTimeWindowService(timeWindows),
		admin.WithRuleAdminService(ruleAdmin),
		admin.WithKeyVerifier(verifier),
		admin.WithConfig(cfg),
		admin.WithMetricsRegistry(registry),
		admin.WithLogger(logger),
	)

	mux := http.NewServeMux()
	apiHandler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	defaults, _ := authz.DefaultRules()
	logger.Info("rostergate starting",
		"version", Version,
		"dev_mode", cfg.DevMode,
		"http_addr", cfg.Server.HTTPAddr,
		"store", cfg.Store.Driver,
		"default_rules", len(defaults),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	logger.Info("rostergate stopped")
	return nil
}

// seedRules persists configured seed rules through the admin service, so
// they get the same validation as API writes. Roles that already hold
// persisted rules are skipped to keep restarts idempotent.
func seedRules(ctx context.Context, cfg *config.Config, ruleAdmin *service.RuleAdminService, logger *slog.Logger) error {
	if len(cfg.Seed.Rules) == 0 {
		return nil
	}

	skip := make(map[string]bool)
	seeded := 0
	for _, sr := range cfg.Seed.Rules {
		if _, checked := skip[sr.Role]; !checked {
			existing, err := ruleAdmin.ListRules(ctx, sr.Role)
			if err != nil {
				return fmt.Errorf("failed to inspect rules for role %q: %w", sr.Role, err)
			}
			skip[sr.Role] = len(existing) > 0
		}
		if skip[sr.Role] {
			continue
		}

		conditions := make([]authz.ConditionDefinition, len(sr.Conditions))
		for i, c := range sr.Conditions {
			conditions[i] = authz.ConditionDefinition{
				Kind:     authz.ConditionKind(c.Kind),
				Value:    c.Value,
				Field:    c.Field,
				Operator: authz.Operator(c.Operator),
			}
		}
		requireAll := true
		if sr.RequireAll != nil {
			requireAll = *sr.RequireAll
		}
		if _, err := ruleAdmin.CreateRule(ctx, sr.Role, authz.ConditionalRule{
			Resource:   sr.Resource,
			Action:     sr.Action,
			Conditions: conditions,
			RequireAll: requireAll,
		}); err != nil {
			return fmt.Errorf("failed to seed rule for role %q: %w", sr.Role, err)
		}
		seeded++
	}
	if seeded > 0 {
		logger.Info("seeded rules", "count", seeded)
	}
	return nil
}

// directoryUsersFromConfig converts config directory entries to store users.
func directoryUsersFromConfig(cfg *config.Config) []memory.User {
	users := make([]memory.User, 0, len(cfg.Directory.Users))
	for _, u := range cfg.Directory.Users {
		grants := make([]memory.VenueGrant, 0, len(u.VenueGrants))
		for _, g := range u.VenueGrants {
			grants = append(grants, memory.VenueGrant{
				Resource: g.Resource,
				VenueID:  g.VenueID,
			})
		}
		users = append(users, memory.User{
			ID:              u.ID,
			Role:            u.Role,
			Admin:           u.Admin,
			Venues:          u.Venues,
			Attributes:      u.Attributes,
			VenueGrants:     grants,
			BasePermissions: u.Permissions,
		})
	}
	return users
}
