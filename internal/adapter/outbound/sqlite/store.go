// Package sqlite provides a SQLite-backed store for persisted rules,
// implementing both authz.RuleStore and schedule.TimeWindowStore.
// Condition payloads and day sets are stored as JSON; the encoding is an
// internal detail of this adapter, not a contract surface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rosterops/rostergate/internal/domain/authz"
	"github.com/rosterops/rostergate/internal/domain/schedule"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS conditional_rules (
	id          TEXT PRIMARY KEY,
	role_id     TEXT NOT NULL,
	resource    TEXT NOT NULL,
	action      TEXT NOT NULL,
	require_all INTEGER NOT NULL,
	conditions  TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conditional_rules_role ON conditional_rules(role_id);

CREATE TABLE IF NOT EXISTS time_window_rules (
	id           TEXT PRIMARY KEY,
	role_id      TEXT NOT NULL,
	resource     TEXT NOT NULL,
	action       TEXT NOT NULL,
	days_of_week TEXT NOT NULL,
	start_time   TEXT NOT NULL,
	end_time     TEXT NOT NULL,
	timezone     TEXT NOT NULL,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_time_window_rules_role ON time_window_rules(role_id);
`

// Store is a SQLite-backed rule store. Safe for concurrent use; each write
// is a single-statement transaction, which is all rule administration needs.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the database at path and applies the
// schema. Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// modernc.org/sqlite serializes writes per connection; a single
	// connection avoids SQLITE_BUSY under concurrent admin writes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRule persists a conditional rule, assigning a UUID when the ID is empty.
func (s *Store) CreateRule(ctx context.Context, r *authz.ConditionalRule) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.Origin = authz.OriginPersisted

	conditions, err := json.Marshal(r.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode conditions: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conditional_rules (id, role_id, resource, action, require_all, conditions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RoleID, r.Resource, r.Action, boolToInt(r.RequireAll), string(conditions),
		r.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

// ListRules returns all persisted rules for a role.
func (s *Store) ListRules(ctx context.Context, roleID string) ([]authz.ConditionalRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role_id, resource, action, require_all, conditions, created_at
		 FROM conditional_rules WHERE role_id = ? ORDER BY created_at`, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var result []authz.ConditionalRule
	for rows.Next() {
		var (
			r          authz.ConditionalRule
			requireAll int
			conditions string
			createdAt  string
		)
		if err := rows.Scan(&r.ID, &r.RoleID, &r.Resource, &r.Action, &requireAll, &conditions, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		if err := json.Unmarshal([]byte(conditions), &r.Conditions); err != nil {
			return nil, fmt.Errorf("failed to decode conditions for rule %s: %w", r.ID, err)
		}
		r.RequireAll = requireAll != 0
		r.Origin = authz.OriginPersisted
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		result = append(result, r)
	}
	return result, rows.Err()
}

// DeleteRule removes a conditional rule by ID. Returns false when absent.
func (s *Store) DeleteRule(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conditional_rules WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// CreateWindow persists a time-window rule, assigning a UUID when the ID is empty.
func (s *Store) CreateWindow(ctx context.Context, w *schedule.TimeWindowRule) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}

	days, err := json.Marshal(w.DaysOfWeek)
	if err != nil {
		return fmt.Errorf("failed to encode days of week: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO time_window_rules (id, role_id, resource, action, days_of_week, start_time, end_time, timezone, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.RoleID, w.Resource, w.Action, string(days), w.StartTime, w.EndTime, w.Timezone,
		w.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert time window: %w", err)
	}
	return nil
}

// ListWindows returns all time windows for a role.
func (s *Store) ListWindows(ctx context.Context, roleID string) ([]schedule.TimeWindowRule, error) {
	return s.queryWindows(ctx,
		`SELECT id, role_id, resource, action, days_of_week, start_time, end_time, timezone, created_at
		 FROM time_window_rules WHERE role_id = ? ORDER BY created_at`, roleID)
}

// ListWindowsForResource returns the role's windows applying to a resource.
func (s *Store) ListWindowsForResource(ctx context.Context, roleID, resource string) ([]schedule.TimeWindowRule, error) {
	return s.queryWindows(ctx,
		`SELECT id, role_id, resource, action, days_of_week, start_time, end_time, timezone, created_at
		 FROM time_window_rules WHERE role_id = ? AND resource IN (?, ?) ORDER BY created_at`,
		roleID, resource, schedule.MatchAllResources)
}

func (s *Store) queryWindows(ctx context.Context, query string, args ...any) ([]schedule.TimeWindowRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query time windows: %w", err)
	}
	defer rows.Close()

	var result []schedule.TimeWindowRule
	for rows.Next() {
		var (
			w         schedule.TimeWindowRule
			days      string
			createdAt string
		)
		if err := rows.Scan(&w.ID, &w.RoleID, &w.Resource, &w.Action, &days, &w.StartTime, &w.EndTime, &w.Timezone, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan time window: %w", err)
		}
		if err := json.Unmarshal([]byte(days), &w.DaysOfWeek); err != nil {
			return nil, fmt.Errorf("failed to decode days for window %s: %w", w.ID, err)
		}
		w.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		result = append(result, w)
	}
	return result, rows.Err()
}

// DeleteWindow removes a time-window rule by ID. Returns false when absent.
func (s *Store) DeleteWindow(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM time_window_rules WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete time window: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Compile-time interface verification.
var (
	_ authz.RuleStore          = (*Store)(nil)
	_ schedule.TimeWindowStore = (*Store)(nil)
)
