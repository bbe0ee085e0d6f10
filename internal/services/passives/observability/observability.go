// Package observability exposes Prometheus metrics for the passives service.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/louisbranch/hollowspire.game/internal/platform/errors"
)

// Mutation result labels.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Stat cache outcome labels.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Metrics aggregates the passives service collectors. A nil *Metrics is a
// valid no-op receiver so metrics stay optional in tests and tooling.
type Metrics struct {
	registry *prometheus.Registry

	allocations  *prometheus.CounterVec
	refunds      *prometheus.CounterVec
	resets       prometheus.Counter
	calcDuration prometheus.Histogram
	cacheLookups *prometheus.CounterVec
	watchers     prometheus.Gauge
}

// New creates and registers the passives collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passives_allocations_total",
			Help: "Node allocation attempts by result.",
		}, []string{"result"}),
		refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passives_refunds_total",
			Help: "Node refund attempts by result.",
		}, []string{"result"}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "passives_resets_total",
			Help: "Successful tree resets.",
		}),
		calcDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "passives_stat_calc_duration_seconds",
			Help:    "Stat pipeline execution time.",
			Buckets: prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passives_stat_cache_requests_total",
			Help: "Stat cache lookups by outcome.",
		}, []string{"outcome"}),
		watchers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "passives_tree_watchers",
			Help: "Open tree watch connections.",
		}),
	}
	registry.MustRegister(
		m.allocations,
		m.refunds,
		m.resets,
		m.calcDuration,
		m.cacheLookups,
		m.watchers,
	)
	return m
}

// ResultFor classifies a mutation outcome for counter labels. Gameplay
// violations count as rejections; anything else non-nil is an error.
func ResultFor(err error) string {
	if err == nil {
		return ResultOK
	}
	if apperrors.CodeOf(err).HTTPStatus() == http.StatusUnprocessableEntity {
		return ResultRejected
	}
	return ResultError
}

// RecordAllocation counts one allocation attempt.
func (m *Metrics) RecordAllocation(result string) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(result).Inc()
}

// RecordRefund counts one refund attempt.
func (m *Metrics) RecordRefund(result string) {
	if m == nil {
		return
	}
	m.refunds.WithLabelValues(result).Inc()
}

// RecordReset counts one successful reset.
func (m *Metrics) RecordReset() {
	if m == nil {
		return
	}
	m.resets.Inc()
}

// ObserveStatCalc records one stat pipeline run.
func (m *Metrics) ObserveStatCalc(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.calcDuration.Observe(elapsed.Seconds())
}

// RecordCacheLookup counts one stat cache lookup.
func (m *Metrics) RecordCacheLookup(outcome string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(outcome).Inc()
}

// WatcherConnected tracks one opened watch connection.
func (m *Metrics) WatcherConnected() {
	if m == nil {
		return
	}
	m.watchers.Inc()
}

// WatcherDisconnected tracks one closed watch connection.
func (m *Metrics) WatcherDisconnected() {
	if m == nil {
		return
	}
	m.watchers.Dec()
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
