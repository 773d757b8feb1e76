package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	LoadDuration  prometheus.Histogram
	LoadedRecords prometheus.Gauge
	LoadFailures  prometheus.Counter
	Aggregations  *prometheus.CounterVec
	Placeholders  *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		LoadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "superstore",
			Name:      "load_duration_seconds",
			Help:      "Time spent parsing the sales source.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		LoadedRecords: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "superstore",
			Name:      "loaded_records",
			Help:      "Records in the current dataset.",
		}),
		LoadFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "superstore",
			Name:      "load_failures_total",
			Help:      "Failed source loads.",
		}),
		Aggregations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "superstore",
			Name:      "aggregations_total",
			Help:      "Aggregations served, by operation.",
		}, []string{"operation"}),
		Placeholders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "superstore",
			Name:      "placeholders_total",
			Help:      "Aggregations answered with a placeholder, by operation.",
		}, []string{"operation"}),
	}
}

// ObserveLoad records a completed load. Its signature matches engine.Cache.OnLoad.
func (m *Metrics) ObserveLoad(_ string, rows int, took time.Duration) {
	m.LoadDuration.Observe(took.Seconds())
	m.LoadedRecords.Set(float64(rows))
}

// Registry exposes the registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
