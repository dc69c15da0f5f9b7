// Package metrics provides Prometheus instrumentation for the dtsociety server.
//
// Metrics exposed:
//   - dtsociety_stage_seconds: Histogram of pipeline stage duration by stage
//   - dtsociety_fit_seconds: Histogram of model fit duration by model
//   - dtsociety_errors_total: Counter of errors by component and reason
//   - dtsociety_cached_tables: Gauge of prepared tables held in the cache
//
// Metrics implements pipeline.Observer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// fitBuckets extend the default buckets for slow VAR lag searches.
var fitBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}

// Metrics holds all Prometheus metrics for the server.
type Metrics struct {
	StageSeconds *prometheus.HistogramVec
	FitSeconds   *prometheus.HistogramVec
	ErrorsTotal  *prometheus.CounterVec
	CachedTables prometheus.Gauge
}

// New creates the metrics and registers them with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		StageSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dtsociety_stage_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),

		FitSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dtsociety_fit_seconds",
			Help:    "Time spent fitting and forecasting a model",
			Buckets: fitBuckets,
		}, []string{"model"}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dtsociety_errors_total",
			Help: "Total number of errors by component and reason",
		}, []string{"component", "reason"}),

		CachedTables: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dtsociety_cached_tables",
			Help: "Number of prepared tables in the cache",
		}),
	}
}

// ObserveStage records the duration of a pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveFit records the duration of a model fit.
func (m *Metrics) ObserveFit(model string, d time.Duration) {
	m.FitSeconds.WithLabelValues(model).Observe(d.Seconds())
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}

// SetCachedTables sets the cache size.
func (m *Metrics) SetCachedTables(n int) {
	m.CachedTables.Set(float64(n))
}
