package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// mosaic aggregator.
type Metrics struct {
	TilesReceived     prometheus.Counter
	AggregatorRunning prometheus.Gauge
	SlotsActive       prometheus.Gauge

	// Composite build metrics.
	CompositesBuilt   *prometheus.CounterVec // labels: trigger={complete,timeout}
	CompositeErrors   prometheus.Counter
	CompositeDuration prometheus.Histogram
	TilesPerComposite prometheus.Histogram

	// Sink topic metrics.
	MosaicEventsPublished prometheus.Counter
	PublishErrors         prometheus.Counter
}

// NewMetrics creates and registers all aggregator metrics with the
// default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		TilesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "world_mosaic",
			Name:      "tiles_received_total",
			Help:      "Total tile notifications consumed from the source topics.",
		}),
		AggregatorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world_mosaic",
			Name:      "aggregator_running",
			Help:      "1 when the aggregator loop is active, 0 when shut down.",
		}),
		SlotsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world_mosaic",
			Name:      "slots_active",
			Help:      "Accumulating (time slot, product) pairs currently held in memory.",
		}),
		CompositesBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "world_mosaic",
			Name:      "composites_built_total",
			Help:      "Finished composites by trigger (all tiles arrived vs. deadline).",
		}, []string{"trigger"}),
		CompositeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "world_mosaic",
			Name:      "composite_errors_total",
			Help:      "Slots dropped because building or saving the composite failed.",
		}),
		CompositeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "world_mosaic",
			Name:      "composite_duration_seconds",
			Help:      "Duration of a complete load-merge-save cycle for one slot.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		TilesPerComposite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "world_mosaic",
			Name:      "tiles_per_composite",
			Help:      "Number of tiles folded into each finished composite.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10, 15},
		}),
		MosaicEventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "world_mosaic",
			Name:      "mosaic_events_published_total",
			Help:      "Mosaic announcements written to the sink topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "world_mosaic",
			Name:      "publish_errors_total",
			Help:      "Failed sink topic writes.",
		}),
	}

	prometheus.MustRegister(
		m.TilesReceived,
		m.AggregatorRunning,
		m.SlotsActive,
		m.CompositesBuilt,
		m.CompositeErrors,
		m.CompositeDuration,
		m.TilesPerComposite,
		m.MosaicEventsPublished,
		m.PublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		TilesReceived:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "world_mosaic", Name: "tiles_received_total"}),
		AggregatorRunning:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "world_mosaic", Name: "aggregator_running"}),
		SlotsActive:           prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "world_mosaic", Name: "slots_active"}),
		CompositesBuilt:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "world_mosaic", Name: "composites_built_total"}, []string{"trigger"}),
		CompositeErrors:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "world_mosaic", Name: "composite_errors_total"}),
		CompositeDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "world_mosaic", Name: "composite_duration_seconds"}),
		TilesPerComposite:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "world_mosaic", Name: "tiles_per_composite"}),
		MosaicEventsPublished: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "world_mosaic", Name: "mosaic_events_published_total"}),
		PublishErrors:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "world_mosaic", Name: "publish_errors_total"}),
	}
}
