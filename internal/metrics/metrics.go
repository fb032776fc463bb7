// Package metrics exposes Prometheus counters for outbound weather calls,
// rate limiting, the snapshot cache and generated reorder suggestions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	apiCallsTotal            *prometheus.CounterVec
	rateLimitRejectionsTotal *prometheus.CounterVec
	cacheLookupsTotal        *prometheus.CounterVec
	suggestionsTotal         *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		apiCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reorder_api_calls_total",
				Help: "Outbound API calls recorded by the rate limiter",
			},
			[]string{"service", "status"}, // status: success, error
		),
		rateLimitRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reorder_rate_limit_rejections_total",
				Help: "Rate limit checks that found the hourly quota exhausted",
			},
			[]string{"service"},
		),
		cacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reorder_weather_cache_lookups_total",
				Help: "Weather snapshot cache lookups",
			},
			[]string{"result"}, // result: hit, miss
		),
		suggestionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reorder_suggestions_total",
				Help: "Reorder suggestions generated",
			},
			[]string{"priority"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.apiCallsTotal,
		m.rateLimitRejectionsTotal,
		m.cacheLookupsTotal,
		m.suggestionsTotal,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) RecordAPICall(service string, success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.apiCallsTotal.WithLabelValues(service, status).Inc()
}

func (m *Metrics) RecordRateLimited(service string) {
	if m == nil {
		return
	}
	m.rateLimitRejectionsTotal.WithLabelValues(service).Inc()
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordSuggestion(priority string) {
	if m == nil {
		return
	}
	m.suggestionsTotal.WithLabelValues(priority).Inc()
}
