package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "finfactor"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetches   *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	rows      *prometheus.GaugeVec
	lossRatio prometheus.Gauge
}

// New registers the collectors on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Market data requests by source and kind",
			},
			[]string{"source", "kind"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		rows: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "table_rows",
				Help:      "Row count of the last built table",
			},
			[]string{"table"},
		),
		lossRatio: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "factor_data_loss_ratio",
				Help:      "Fraction of factor rows dropped by the last alignment",
			},
		),
	}
}

// RecordFetch counts one request to a market data source.
func (r *Recorder) RecordFetch(source, kind string) {
	r.fetches.WithLabelValues(source, kind).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordRows sets the row gauge of a table.
func (r *Recorder) RecordRows(table string, n int) {
	r.rows.WithLabelValues(table).Set(float64(n))
}

// RecordLoss sets the last alignment loss.
func (r *Recorder) RecordLoss(fraction float64) {
	r.lossRatio.Set(fraction)
}

// Noop discards every observation.
type Noop struct{}

func (Noop) RecordFetch(string, string)      {}
func (Noop) RecordError(string)              {}
func (Noop) RecordLatency(string, float64)   {}
func (Noop) RecordRows(string, int)          {}
func (Noop) RecordLoss(float64)              {}
