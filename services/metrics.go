package services

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vaultkeeper-hq/vaultkeeper/config"
	"github.com/vaultkeeper-hq/vaultkeeper/models"
)

// MetricsService handles Prometheus metrics collection and exposition
type MetricsService struct {
	// Prometheus metrics
	activeWatches      *prometheus.GaugeVec
	watchesTotal       *prometheus.CounterVec
	statusEventsTotal  *prometheus.CounterVec
	keeperTicksTotal   prometheus.Counter
	keeperSubmissions  prometheus.Counter
	keeperTriggerNoops prometheus.Counter
	keeperErrorsTotal  *prometheus.CounterVec
	lastTickTimestamp  prometheus.Gauge

	// Local counters mirrored for the JSON summary endpoint
	mu       sync.RWMutex
	counters metricsCounters

	logger   zerolog.Logger
	registry *prometheus.Registry
}

type metricsCounters struct {
	activeWatches      int64
	watchesTotal       int64
	statusEventsTotal  int64
	keeperTicksTotal   int64
	keeperSubmissions  int64
	keeperTriggerNoops int64
	keeperTickErrors   int64
	keeperAcctErrors   int64
	lastTickTime       time.Time
}

// NewMetricsService creates a new metrics service
func NewMetricsService(logger zerolog.Logger) *MetricsService {
	registry := prometheus.NewRegistry()

	activeWatches := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vaultkeeper_watches_active",
			Help: "Number of transaction watches currently in flight per chain",
		},
		[]string{"chain_id", "chain_name"},
	)

	watchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultkeeper_watches_total",
			Help: "Total number of transaction watches started per chain",
		},
		[]string{"chain_id", "chain_name"},
	)

	statusEventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultkeeper_status_events_total",
			Help: "Total number of status events emitted per chain and status",
		},
		[]string{"chain_id", "chain_name", "status"},
	)

	keeperTicksTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vaultkeeper_keeper_ticks_total",
		Help: "Total number of keeper ticks started",
	})

	keeperSubmissions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vaultkeeper_keeper_submissions_total",
		Help: "Total number of update transactions mined successfully",
	})

	keeperTriggerNoops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vaultkeeper_keeper_trigger_noops_total",
		Help: "Total number of executions skipped because the trigger condition was not met",
	})

	keeperErrorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaultkeeper_keeper_errors_total",
			Help: "Total number of keeper failures by scope (tick or account)",
		},
		[]string{"scope"},
	)

	lastTickTimestamp := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vaultkeeper_keeper_last_tick_timestamp",
		Help: "Unix timestamp of the last keeper tick",
	})

	registry.MustRegister(activeWatches)
	registry.MustRegister(watchesTotal)
	registry.MustRegister(statusEventsTotal)
	registry.MustRegister(keeperTicksTotal)
	registry.MustRegister(keeperSubmissions)
	registry.MustRegister(keeperTriggerNoops)
	registry.MustRegister(keeperErrorsTotal)
	registry.MustRegister(lastTickTimestamp)

	return &MetricsService{
		activeWatches:      activeWatches,
		watchesTotal:       watchesTotal,
		statusEventsTotal:  statusEventsTotal,
		keeperTicksTotal:   keeperTicksTotal,
		keeperSubmissions:  keeperSubmissions,
		keeperTriggerNoops: keeperTriggerNoops,
		keeperErrorsTotal:  keeperErrorsTotal,
		lastTickTimestamp:  lastTickTimestamp,
		logger:             logger,
		registry:           registry,
	}
}

// WatchStarted records a new transaction watch entering the poll loop.
func (m *MetricsService) WatchStarted(chainID uint64) {
	labels := chainLabels(chainID)
	m.activeWatches.WithLabelValues(labels...).Inc()
	m.watchesTotal.WithLabelValues(labels...).Inc()

	m.mu.Lock()
	m.counters.activeWatches++
	m.counters.watchesTotal++
	m.mu.Unlock()
}

// WatchFinished records a watch leaving the poll loop, terminal or cancelled.
func (m *MetricsService) WatchFinished(chainID uint64) {
	m.activeWatches.WithLabelValues(chainLabels(chainID)...).Dec()

	m.mu.Lock()
	m.counters.activeWatches--
	m.mu.Unlock()
}

// StatusEventEmitted records one emitted status event.
func (m *MetricsService) StatusEventEmitted(chainID uint64, status models.TxStatus) {
	m.statusEventsTotal.WithLabelValues(append(chainLabels(chainID), string(status))...).Inc()

	m.mu.Lock()
	m.counters.statusEventsTotal++
	m.mu.Unlock()
}

// KeeperTickStarted records the start of a keeper tick.
func (m *MetricsService) KeeperTickStarted(start time.Time) {
	m.keeperTicksTotal.Inc()
	m.lastTickTimestamp.Set(float64(start.Unix()))

	m.mu.Lock()
	m.counters.keeperTicksTotal++
	m.counters.lastTickTime = start
	m.mu.Unlock()
}

// KeeperSubmission records a successfully mined update transaction.
func (m *MetricsService) KeeperSubmission() {
	m.keeperSubmissions.Inc()

	m.mu.Lock()
	m.counters.keeperSubmissions++
	m.mu.Unlock()
}

// KeeperTriggerNoop records an execution skipped because the price condition
// does not hold.
func (m *MetricsService) KeeperTriggerNoop() {
	m.keeperTriggerNoops.Inc()

	m.mu.Lock()
	m.counters.keeperTriggerNoops++
	m.mu.Unlock()
}

// KeeperTickError records a tick that aborted before any submission.
func (m *MetricsService) KeeperTickError() {
	m.keeperErrorsTotal.WithLabelValues("tick").Inc()

	m.mu.Lock()
	m.counters.keeperTickErrors++
	m.mu.Unlock()
}

// KeeperAccountError records a non-benign failure for a single account.
func (m *MetricsService) KeeperAccountError() {
	m.keeperErrorsTotal.WithLabelValues("account").Inc()

	m.mu.Lock()
	m.counters.keeperAcctErrors++
	m.mu.Unlock()
}

func chainLabels(chainID uint64) []string {
	return []string{fmt.Sprintf("%d", chainID), config.GetChainName(chainID)}
}

// GetHandler returns the Prometheus metrics HTTP handler
func (m *MetricsService) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// GetMetricsSummary returns a summary of all metrics for debugging
func (m *MetricsService) GetMetricsSummary() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := map[string]interface{}{
		"active_watches":      m.counters.activeWatches,
		"watches_total":       m.counters.watchesTotal,
		"status_events_total": m.counters.statusEventsTotal,
		"keeper": map[string]interface{}{
			"ticks_total":       m.counters.keeperTicksTotal,
			"submissions_total": m.counters.keeperSubmissions,
			"trigger_noops":     m.counters.keeperTriggerNoops,
			"tick_errors":       m.counters.keeperTickErrors,
			"account_errors":    m.counters.keeperAcctErrors,
			"last_tick_time":    m.counters.lastTickTime,
		},
		"timestamp": time.Now(),
	}

	return summary
}
