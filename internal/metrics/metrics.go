package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jpalmerr/envboard/internal/sampler"
	"github.com/jpalmerr/envboard/internal/sensor"
)

const namespace = "envboard"

// ResultOK labels a connection whose response was fully written.
const ResultOK = "ok"

// Metrics holds the dashboard's collectors.
type Metrics struct {
	registry *prometheus.Registry

	reading       *prometheus.GaugeVec
	fallbacks     *prometheus.CounterVec
	cycles        prometheus.Counter
	cycleDuration prometheus.Histogram
	connections   *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go runtime
// and build info collectors, on a new registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reading: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading",
			Help:      "Latest successful reading per metric.",
		}, []string{"metric", "unit"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_fallbacks_total",
			Help:      "Readings replaced by the fallback value after a sensor fault.",
		}, []string{"metric"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed sampling cycles.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Time spent sampling all sensors and recording one cycle.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Dashboard connections by result: ok or the stage that failed.",
		}, []string{"result"}),
	}

	// pre-create series so every metric is visible before the first fault
	for _, metric := range sensor.Metrics() {
		m.fallbacks.WithLabelValues(metric.String())
	}
	m.connections.WithLabelValues(ResultOK)

	m.registry.MustRegister(
		m.reading,
		m.fallbacks,
		m.cycles,
		m.cycleDuration,
		m.connections,
		collectors.NewGoCollector(),
		collectors.NewBuildInfoCollector(),
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCycle records one sampling cycle. A metric that fell back has its
// reading series removed rather than reported as zero.
func (m *Metrics) ObserveCycle(res sampler.Result) {
	m.cycles.Inc()
	m.cycleDuration.Observe(res.Duration.Seconds())

	for _, rd := range res.Readings {
		labels := prometheus.Labels{"metric": rd.Metric.String(), "unit": string(rd.Unit())}
		if rd.OK() {
			m.reading.With(labels).Set(rd.Value)
			continue
		}
		m.reading.Delete(labels)
		m.fallbacks.WithLabelValues(rd.Metric.String()).Inc()
	}
}

// ObserveConnection counts one dashboard connection. result is [ResultOK] or
// the name of the stage that failed.
func (m *Metrics) ObserveConnection(result string) {
	m.connections.WithLabelValues(result).Inc()
}
