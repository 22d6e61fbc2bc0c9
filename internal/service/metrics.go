package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the authorization engine.
// All methods are nil-safe so tests can pass a nil *Metrics.
type Metrics struct {
	EvaluationsTotal    *prometheus.CounterVec
	EvaluationDuration  prometheus.Histogram
	ConditionChecks     *prometheus.CounterVec
	TimeWindowChecks    *prometheus.CounterVec
	ResolverCacheHits   prometheus.Counter
	ResolverCacheMisses prometheus.Counter
}

// NewMetrics creates and registers all engine metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		EvaluationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rostergate",
				Name:      "evaluations_total",
				Help:      "Total authorization evaluations by result",
			},
			[]string{"result"}, // result=allow/deny
		),
		EvaluationDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "rostergate",
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of full authorization evaluations",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ConditionChecks: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rostergate",
				Name:      "condition_checks_total",
				Help:      "Total condition checks by kind and result",
			},
			[]string{"kind", "result"},
		),
		TimeWindowChecks: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rostergate",
				Name:      "timewindow_checks_total",
				Help:      "Total time-window checks by result",
			},
			[]string{"result"},
		),
		ResolverCacheHits: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "rostergate",
				Name:      "resolver_cache_hits_total",
				Help:      "Rule resolver cache hits",
			},
		),
		ResolverCacheMisses: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "rostergate",
				Name:      "resolver_cache_misses_total",
				Help:      "Rule resolver cache misses",
			},
		),
	}
}

// ObserveEvaluation records one evaluation outcome and its duration.
func (m *Metrics) ObserveEvaluation(allowed bool, d time.Duration) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(resultLabel(allowed)).Inc()
	m.EvaluationDuration.Observe(d.Seconds())
}

// ObserveConditionCheck records one condition check outcome.
func (m *Metrics) ObserveConditionCheck(kind string, passed bool) {
	if m == nil {
		return
	}
	m.ConditionChecks.WithLabelValues(kind, passLabel(passed)).Inc()
}

// ObserveTimeWindowCheck records one time-window check outcome.
func (m *Metrics) ObserveTimeWindowCheck(passed bool) {
	if m == nil {
		return
	}
	m.TimeWindowChecks.WithLabelValues(passLabel(passed)).Inc()
}

// ObserveResolverCache records a resolver cache hit or miss.
func (m *Metrics) ObserveResolverCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.ResolverCacheHits.Inc()
	} else {
		m.ResolverCacheMisses.Inc()
	}
}

func resultLabel(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}

func passLabel(passed bool) string {
	if passed {
		return "pass"
	}
	return "fail"
}
