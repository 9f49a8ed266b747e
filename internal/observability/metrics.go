package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the monitor.
type Metrics struct {
	CyclesTotal        prometheus.Counter
	CycleFailures      prometheus.Counter
	PagesFetched       prometheus.Counter
	FetchErrors        prometheus.Counter
	AlertsExtracted    prometheus.Counter
	ExtractionDiscards prometheus.Counter
	PersistErrors      prometheus.Counter
	MonitorRunning     prometheus.Gauge

	ChangeEvents *prometheus.CounterVec // label: kind={created,updated,retracted}

	ActiveAlerts prometheus.Gauge
	KnownAlerts  prometheus.Gauge

	CycleDuration prometheus.Histogram
	BatchSize     prometheus.Histogram
}

// NewMetrics creates and registers all monitor metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CyclesTotal,
		m.CycleFailures,
		m.PagesFetched,
		m.FetchErrors,
		m.AlertsExtracted,
		m.ExtractionDiscards,
		m.PersistErrors,
		m.MonitorRunning,
		m.ChangeEvents,
		m.ActiveAlerts,
		m.KnownAlerts,
		m.CycleDuration,
		m.BatchSize,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "senapred_monitor",
			Name:      "cycles_total",
			Help:      "Total poll-extract-reconcile-persist cycles completed.",
		}),
		CycleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "senapred_monitor",
			Name:      "cycle_failures_total",
			Help:      "Cycles that aborted before persisting, e.g. listing fetch failures.",
		}),
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "senapred_monitor",
			Name:      "pages_fetched_total",
			Help:      "Alert detail pages fetched from the source.",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "senapred_monitor",
			Name:      "fetch_errors_total",
			Help:      "Detail page fetches that failed and were skipped.",
		}),
		AlertsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "senapred_monitor",
			Name:      "alerts_extracted_total",
			Help:      "Pages successfully extracted into typed alert records.",
		}),
		ExtractionDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "senapred_monitor",
			Name:      "extraction_discards_total",
			Help:      "Pages discarded because no alert category marker was found.",
		}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "senapred_monitor",
			Name:      "persist_errors_total",
			Help:      "Failures writing the state file.",
		}),
		MonitorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "senapred_monitor",
			Name:      "running",
			Help:      "1 when the poll loop is active, 0 when shut down.",
		}),
		ChangeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "senapred_monitor",
			Name:      "change_events_total",
			Help:      "Change events emitted by reconciliation, by kind.",
		}, []string{"kind"}),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "senapred_monitor",
			Name:      "active_alerts",
			Help:      "Alerts currently in active status.",
		}),
		KnownAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "senapred_monitor",
			Name:      "known_alerts",
			Help:      "All alert identities in the store, active and retracted.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "senapred_monitor",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete poll-extract-reconcile-persist cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "senapred_monitor",
			Name:      "batch_size",
			Help:      "Number of alert records extracted per cycle.",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 200},
		}),
	}
}
