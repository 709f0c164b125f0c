package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports index activity as Prometheus collectors.
type Metrics struct {
	LookupsTotal  *prometheus.CounterVec
	BuildsTotal   *prometheus.CounterVec
	BuildDuration prometheus.Histogram
	BuildItems    prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colindex_lookups_total",
				Help: "Value lookups by property and result (hit, miss).",
			},
			[]string{"property", "result"},
		),
		BuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colindex_index_builds_total",
				Help: "Full index builds by property.",
			},
			[]string{"property"},
		),
		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "colindex_index_build_seconds",
				Help:    "Full index build latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		BuildItems: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "colindex_index_build_items",
				Help:    "Number of items scanned per full index build.",
				Buckets: prometheus.ExponentialBuckets(10, 10, 6),
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.LookupsTotal, m.BuildsTotal, m.BuildDuration, m.BuildItems)
	}
	return m
}

// Lookup implements indexer.Observer.
func (m *Metrics) Lookup(property string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.LookupsTotal.WithLabelValues(property, result).Inc()
}

// IndexBuilt implements indexer.Observer.
func (m *Metrics) IndexBuilt(property string, items int, elapsed time.Duration) {
	m.BuildsTotal.WithLabelValues(property).Inc()
	m.BuildDuration.Observe(elapsed.Seconds())
	m.BuildItems.Observe(float64(items))
}

// Observer mirrors indexer.Observer so that this package stays independent of
// the engine.
type Observer interface {
	IndexBuilt(property string, items int, elapsed time.Duration)
	Lookup(property string, hit bool)
}

// Multi fans notifications out to several observers. Nil entries are skipped.
type Multi []Observer

func (m Multi) Lookup(property string, hit bool) {
	for _, o := range m {
		if o != nil {
			o.Lookup(property, hit)
		}
	}
}

func (m Multi) IndexBuilt(property string, items int, elapsed time.Duration) {
	for _, o := range m {
		if o != nil {
			o.IndexBuilt(property, items, elapsed)
		}
	}
}
