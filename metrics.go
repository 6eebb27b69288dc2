package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the application
type Metrics struct {
	// WebSocket connection metrics
	ConnectedClients prometheus.Gauge

	// Provisioning metrics
	ProvisionTotal prometheus.Counter

	// Signing and broadcast metrics
	RecoveryAttempts  *prometheus.CounterVec
	RecoveryExhausted prometheus.Counter
	BroadcastAttempts *prometheus.CounterVec

	// Automation metrics
	AutomationRuns *prometheus.CounterVec

	// Cache metrics
	CacheSyncTotal      *prometheus.CounterVec
	CachedOrganizations prometheus.Gauge
}

// NewMetrics initializes and registers Prometheus metrics
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(nil)
}

// NewMetricsWithRegistry initializes and registers Prometheus metrics with a custom registry
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tradenode_connected_clients",
			Help: "The current number of connected websocket clients",
		}),
		ProvisionTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradenode_provisions_total",
			Help: "The total number of completed custody provisionings",
		}),
		RecoveryAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradenode_recovery_attempts_total",
				Help: "The total number of recovery-id candidates tried, by candidate",
			},
			[]string{"v"},
		),
		RecoveryExhausted: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradenode_recovery_exhausted_total",
			Help: "The total number of signatures that failed under every recovery candidate",
		}),
		BroadcastAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradenode_broadcasts_total",
				Help: "The total number of transaction broadcasts, by outcome",
			},
			[]string{"outcome"},
		),
		AutomationRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradenode_automation_runs_total",
				Help: "The total number of automation runs, by terminal status",
			},
			[]string{"status"},
		),
		CacheSyncTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradenode_cache_syncs_total",
				Help: "The total number of cache reconciliation sweeps, by result",
			},
			[]string{"result"},
		),
		CachedOrganizations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tradenode_cached_organizations",
			Help: "The number of organizations mirrored in the local cache",
		}),
	}
}
