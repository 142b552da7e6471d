package observability

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors for the medstock server.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	RecordsImported prometheus.Counter
	RecordsSkipped  prometheus.Counter
	Dispenses       prometheus.Counter

	ActiveAlerts *prometheus.GaugeVec

	LastBackup prometheus.Gauge
}

// NewMetrics builds the collector set.
func NewMetrics() *Metrics {
	const namespace = "medstock"

	return &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of HTTP requests handled, by method, route, and status",
		}, []string{"method", "route", "status"}),

		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of HTTP request durations",
			Buckets:   prometheus.ExponentialBuckets(1e-3, 5, 7),
		}, []string{"method", "route"}),

		RecordsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "records_total",
			Help:      "Number of inventory records imported",
		}),

		RecordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "skipped_total",
			Help:      "Number of import rows skipped",
		}),

		Dispenses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "dispenses_total",
			Help:      "Number of dispense operations recorded",
		}),

		ActiveAlerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "active",
			Help:      "Number of unacknowledged stock alerts, by type",
		}, []string{"type"}),

		LastBackup: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful backup",
		}),
	}
}

// PrometheusCollectors satisfies the collector registration convention.
func (m *Metrics) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.HTTPRequests,
		m.HTTPDuration,
		m.RecordsImported,
		m.RecordsSkipped,
		m.Dispenses,
		m.ActiveAlerts,
		m.LastBackup,
	}
}

// Register registers all collectors on the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.PrometheusCollectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
