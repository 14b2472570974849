package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hazard_map"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// hazard map service.
type Metrics struct {
	// Fetch coordinator metrics.
	Fetches       *prometheus.CounterVec // labels: outcome={loaded,failed,skipped,invalid}
	FetchDuration prometheus.Histogram
	EventsLoaded  prometheus.Gauge

	// Catalog client metrics.
	CatalogRequests    *prometheus.CounterVec // labels: outcome={success,http_error,transport_error}
	CatalogAPIDuration prometheus.Histogram

	// Sink metrics.
	SinkWrites *prometheus.CounterVec // labels: sink, outcome={success,error}

	// Layer metrics.
	LayerRenders   *prometheus.CounterVec // labels: layer={events,buffers}
	BufferZones    prometheus.Gauge
	BufferDuration prometheus.Histogram

	// HTTP API metrics.
	HTTPRequests *prometheus.CounterVec   // labels: route, code
	HTTPDuration *prometheus.HistogramVec // labels: route
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates the service metrics and registers them with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Fetch requests by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a fetch from request to store commit.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		EventsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events_loaded",
			Help:      "Number of events in the store after the last successful fetch.",
		}),
		CatalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_total",
			Help:      "Catalog API requests by outcome.",
		}, []string{"outcome"}),
		CatalogAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_api_duration_seconds",
			Help:      "Catalog API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_writes_total",
			Help:      "Committed fetch results handed to sinks, by sink and outcome.",
		}, []string{"sink", "outcome"}),
		LayerRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layer_renders_total",
			Help:      "Full layer replacements by layer.",
		}, []string{"layer"}),
		BufferZones: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffer_zones",
			Help:      "Number of buffered zones currently rendered.",
		}),
		BufferDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "buffer_duration_seconds",
			Help:      "Time to build the buffer layer for one distance.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route pattern and status code.",
		}, []string{"route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request duration by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.Fetches,
		m.FetchDuration,
		m.EventsLoaded,
		m.CatalogRequests,
		m.CatalogAPIDuration,
		m.SinkWrites,
		m.LayerRenders,
		m.BufferZones,
		m.BufferDuration,
		m.HTTPRequests,
		m.HTTPDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		Fetches:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "fetches_total"}, []string{"outcome"}),
		FetchDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "fetch_duration_seconds"}),
		EventsLoaded:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "events_loaded"}),
		CatalogRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "catalog_requests_total"}, []string{"outcome"}),
		CatalogAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "catalog_api_duration_seconds"}),
		SinkWrites:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "sink_writes_total"}, []string{"sink", "outcome"}),
		LayerRenders:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "layer_renders_total"}, []string{"layer"}),
		BufferZones:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "buffer_zones"}),
		BufferDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "buffer_duration_seconds"}),
		HTTPRequests:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total"}, []string{"route", "code"}),
		HTTPDuration:       prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds"}, []string{"route"}),
	}
}
