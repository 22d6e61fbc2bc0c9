package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rosterops/rostergate/internal/domain/authz"
	"github.com/rosterops/rostergate/internal/domain/schedule"
)

// TimeWindowService decides whether "now" falls inside any of the time
// windows configured for the acting user's role on a resource. It is
// invoked by the condition evaluator for temporal conditions and is also
// an independent entry point, so it performs its own admin bypass.
type TimeWindowService struct {
	store     schedule.TimeWindowStore
	directory authz.Directory
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// TimeWindowServiceOption configures a TimeWindowService.
type TimeWindowServiceOption func(*TimeWindowService)

// WithClock injects the time source. Tests use this to pin "now".
func WithClock(now func() time.Time) TimeWindowServiceOption {
	return func(s *TimeWindowService) { s.now = now }
}

// WithTimeWindowMetrics sets the metrics sink.
func WithTimeWindowMetrics(m *Metrics) TimeWindowServiceOption {
	return func(s *TimeWindowService) { s.metrics = m }
}

// NewTimeWindowService creates a time-window evaluator.
func NewTimeWindowService(store schedule.TimeWindowStore, directory authz.Directory, logger *slog.Logger, opts ...TimeWindowServiceOption) *TimeWindowService {
	s := &TimeWindowService{
		store:     store,
		directory: directory,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check evaluates the time windows for the user's role on a resource.
// No configured windows means no restriction, so the check passes. When
// windows exist, any single one passing is sufficient. Every ambiguous
// path (role lookup error, store error, bad timezone, malformed clock
// strings, empty day set) fails closed.
func (s *TimeWindowService) Check(ctx context.Context, userID, resource string) schedule.TimeCheckResult {
	result := s.check(ctx, userID, resource)
	s.metrics.ObserveTimeWindowCheck(result.Passed)
	return result
}

func (s *TimeWindowService) check(ctx context.Context, userID, resource string) schedule.TimeCheckResult {
	admin, err := s.directory.IsAdmin(ctx, userID)
	if err != nil {
		s.logger.Warn("admin lookup failed during time check", "user_id", userID, "error", err)
		return schedule.TimeCheckResult{Passed: false, Reason: "time window evaluation error"}
	}
	if admin {
		return schedule.TimeCheckResult{Passed: true, Reason: "administrator override"}
	}

	roleID, err := s.directory.RoleOf(ctx, userID)
	if err != nil {
		s.logger.Warn("role lookup failed during time check", "user_id", userID, "error", err)
		return schedule.TimeCheckResult{Passed: false, Reason: "time window evaluation error"}
	}

	windows, err := s.store.ListWindowsForResource(ctx, roleID, resource)
	if err != nil {
		s.logger.Warn("time window load failed", "role_id", roleID, "resource", resource, "error", err)
		return schedule.TimeCheckResult{Passed: false, Reason: "time window evaluation error"}
	}
	if len(windows) == 0 {
		return schedule.TimeCheckResult{Passed: true, Reason: "no time restriction configured"}
	}

	now := s.now()
	var (
		lastDay  string
		lastTime string
		failures []string
	)
	for _, w := range windows {
		passed, day, clock, reason := s.checkWindow(w, now)
		lastDay, lastTime = day, clock
		if passed {
			return schedule.TimeCheckResult{
				Passed:      true,
				Reason:      fmt.Sprintf("within window %s-%s %s", w.StartTime, w.EndTime, w.Timezone),
				CurrentDay:  day,
				CurrentTime: clock,
			}
		}
		failures = append(failures, reason)
	}

	return schedule.TimeCheckResult{
		Passed:      false,
		Reason:      "outside allowed time windows: " + strings.Join(failures, "; "),
		CurrentDay:  lastDay,
		CurrentTime: lastTime,
	}
}

// checkWindow evaluates one window against the instant, returning the
// local day name and HH:MM observed in the window's zone for diagnostics.
func (s *TimeWindowService) checkWindow(w schedule.TimeWindowRule, now time.Time) (passed bool, day, clock, reason string) {
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		s.logger.Warn("unloadable timezone in time window", "window_id", w.ID, "timezone", w.Timezone, "error", err)
		return false, "", "", fmt.Sprintf("window %s has unknown timezone %q", w.ID, w.Timezone)
	}

	local := now.In(loc)
	day = local.Weekday().String()
	clock = local.Format("15:04")

	// Sunday=0 matches time.Weekday's numbering.
	if !containsDay(w.DaysOfWeek, int(local.Weekday())) {
		return false, day, clock, fmt.Sprintf("%s is not an allowed day for window %s-%s %s", day, w.StartTime, w.EndTime, w.Timezone)
	}

	start, err := schedule.ParseClock(w.StartTime)
	if err != nil {
		s.logger.Warn("malformed start time in time window", "window_id", w.ID, "error", err)
		return false, day, clock, fmt.Sprintf("window %s has a malformed start time", w.ID)
	}
	end, err := schedule.ParseClock(w.EndTime)
	if err != nil {
		s.logger.Warn("malformed end time in time window", "window_id", w.ID, "error", err)
		return false, day, clock, fmt.Sprintf("window %s has a malformed end time", w.ID)
	}

	current := local.Hour()*60 + local.Minute()
	if !schedule.WithinWindow(current, start, end) {
		return false, day, clock, fmt.Sprintf("%s is outside window %s-%s %s", clock, w.StartTime, w.EndTime, w.Timezone)
	}
	return true, day, clock, ""
}

// containsDay reports day membership. An empty set never matches.
func containsDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
