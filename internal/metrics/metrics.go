// Package metrics holds the Prometheus collectors for audienced.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// Metrics holds the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	TogglesTotal     *prometheus.CounterVec
	ClearsTotal      prometheus.Counter
	FocusResets      prometheus.Counter
	ProjectionsTotal prometheus.Counter
	SavesTotal       *prometheus.CounterVec
	SelectionSize    prometheus.Histogram
	ReloadsTotal     *prometheus.CounterVec
	TaxonomyNodes    *prometheus.GaugeVec
	EventsTotal      *prometheus.CounterVec
	StoreOpDuration  *prometheus.HistogramVec
	SelectionsStored prometheus.Gauge
}

// Default registers the collectors with the default registry once and
// returns the shared instance.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New registers a fresh set of collectors with reg.
//
// Metrics:
//   - audienced_toggles_total{level,verb}
//   - audienced_selection_clears_total
//   - audienced_focus_resets_total - focus changes that cleared the selection
//   - audienced_label_projections_total
//   - audienced_selection_saves_total{result}
//   - audienced_selection_size - ids per saved selection
//   - audienced_taxonomy_reloads_total{result}
//   - audienced_taxonomy_nodes{level}
//   - audienced_events_published_total{result}
//   - audienced_store_op_duration_seconds{op}
//   - audienced_selections_stored
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TogglesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audienced_toggles_total",
			Help: "Checkbox toggles applied, by level and verb (select, deselect)",
		}, []string{"level", "verb"}),

		ClearsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "audienced_selection_clears_total",
			Help: "Explicit clear-all calls",
		}),

		FocusResets: f.NewCounter(prometheus.CounterOpts{
			Name: "audienced_focus_resets_total",
			Help: "Focus changes that reset the selection",
		}),

		ProjectionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "audienced_label_projections_total",
			Help: "Selections projected to labels",
		}),

		SavesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audienced_selection_saves_total",
			Help: "Selection saves by result (ok, error)",
		}, []string{"result"}),

		SelectionSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "audienced_selection_size",
			Help:    "Number of selected ids across all levels per saved selection",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		}),

		ReloadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audienced_taxonomy_reloads_total",
			Help: "Taxonomy reloads by result (ok, error)",
		}, []string{"result"}),

		TaxonomyNodes: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "audienced_taxonomy_nodes",
			Help: "Nodes per level in the current taxonomy",
		}, []string{"level"}),

		EventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audienced_events_published_total",
			Help: "Selection change events by result (ok, error)",
		}, []string{"result"}),

		StoreOpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audienced_store_op_duration_seconds",
			Help:    "Selection store operation latency",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"op"}),

		SelectionsStored: f.NewGauge(prometheus.GaugeOpts{
			Name: "audienced_selections_stored",
			Help: "Selections currently stored, as of the last list call",
		}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveToggle counts one toggle.
func (m *Metrics) ObserveToggle(level, verb string) {
	if m == nil {
		return
	}
	m.TogglesTotal.WithLabelValues(level, verb).Inc()
}

// ObserveClear counts one clear-all.
func (m *Metrics) ObserveClear() {
	if m == nil {
		return
	}
	m.ClearsTotal.Inc()
}

// ObserveFocusReset counts a focus change that cleared the selection.
func (m *Metrics) ObserveFocusReset() {
	if m == nil {
		return
	}
	m.FocusResets.Inc()
}

// ObserveProjection counts one label projection.
func (m *Metrics) ObserveProjection() {
	if m == nil {
		return
	}
	m.ProjectionsTotal.Inc()
}

// ObserveSave counts a save and records its size on success.
func (m *Metrics) ObserveSave(err error, size int) {
	if m == nil {
		return
	}
	m.SavesTotal.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.SelectionSize.Observe(float64(size))
	}
}

// ObserveReload counts a reload and, on success, sets the node gauges.
func (m *Metrics) ObserveReload(err error, nodes map[string]int) {
	if m == nil {
		return
	}
	m.ReloadsTotal.WithLabelValues(result(err)).Inc()
	if err != nil {
		return
	}
	for level, n := range nodes {
		m.TaxonomyNodes.WithLabelValues(level).Set(float64(n))
	}
}

// ObservePublish counts an event publish.
func (m *Metrics) ObservePublish(err error) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(result(err)).Inc()
}

// ObserveStore records a store operation that started at start.
func (m *Metrics) ObserveStore(op string, start time.Time) {
	if m == nil {
		return
	}
	m.StoreOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// SetStored sets the stored selections gauge.
func (m *Metrics) SetStored(n int) {
	if m == nil {
		return
	}
	m.SelectionsStored.Set(float64(n))
}
