package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Turn metrics
	TurnsTotal   *prometheus.CounterVec
	TurnDuration prometheus.Histogram
	AgentRetries prometheus.Counter

	// Credential metrics
	TokenRefreshesTotal *prometheus.CounterVec

	// Session durability metrics
	DurableStoreUp prometheus.Gauge
	DegradedSaves  prometheus.Counter
	FallbackLoads  prometheus.Counter

	// Auth metrics
	LoginsTotal *prometheus.CounterVec
	KeysActive  prometheus.Gauge
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		TurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turns_total",
				Help: "Total number of chat turns",
			},
			[]string{"status"},
		),
		TurnDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "turn_duration_seconds",
				Help:    "Duration of chat turns in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		AgentRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "agent_auth_retries_total",
				Help: "Total number of turns retried after an auth-flavored agent failure",
			},
		),

		TokenRefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_refreshes_total",
				Help: "Total number of OAuth token refresh attempts",
			},
			[]string{"provider", "status"},
		),

		DurableStoreUp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "durable_store_up",
				Help: "Whether the durable session store is reachable (1) or not (0)",
			},
		),
		DegradedSaves: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "degraded_saves_total",
				Help: "Total number of session saves that fell back to process memory",
			},
		),
		FallbackLoads: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fallback_loads_total",
				Help: "Total number of session loads served from process memory",
			},
		),

		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logins_total",
				Help: "Total number of login attempts",
			},
			[]string{"status"},
		),
		KeysActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "api_keys_active",
				Help: "Number of API keys in the valid set",
			},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.TurnsTotal)
	m.registry.MustRegister(m.TurnDuration)
	m.registry.MustRegister(m.AgentRetries)

	m.registry.MustRegister(m.TokenRefreshesTotal)

	m.registry.MustRegister(m.DurableStoreUp)
	m.registry.MustRegister(m.DegradedSaves)
	m.registry.MustRegister(m.FallbackLoads)

	m.registry.MustRegister(m.LoginsTotal)
	m.registry.MustRegister(m.KeysActive)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
