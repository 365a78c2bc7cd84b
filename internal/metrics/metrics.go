package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder publishes watcher cycle metrics to Prometheus.
type Recorder struct {
	cycles    *prometheus.CounterVec
	errors    *prometheus.CounterVec
	lastPrice prometheus.Gauge
	ath       prometheus.Gauge
	duration  prometheus.Histogram
}

// New registers the watcher metrics on reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		cycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "athwatcher_cycles_total",
				Help: "Completed poll cycles by outcome",
			},
			[]string{"outcome"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "athwatcher_errors_total",
				Help: "Errors encountered by cycle stage",
			},
			[]string{"stage"},
		),
		lastPrice: factory.NewGauge(prometheus.GaugeOpts{
			Name: "athwatcher_last_price",
			Help: "Last price fetched from the feed",
		}),
		ath: factory.NewGauge(prometheus.GaugeOpts{
			Name: "athwatcher_ath",
			Help: "All-time high as last read or written by the watcher",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "athwatcher_cycle_duration_seconds",
			Help:    "Duration of poll cycles in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RecordCycle records one finished cycle.
func (r *Recorder) RecordCycle(outcome string, took time.Duration) {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues(outcome).Inc()
	r.duration.Observe(took.Seconds())
}

// RecordError records a failure at stage (fetch, save, notify).
func (r *Recorder) RecordError(stage string) {
	if r == nil {
		return
	}
	r.errors.WithLabelValues(stage).Inc()
}

// RecordPrice records the last fetched price.
func (r *Recorder) RecordPrice(v uint64) {
	if r == nil {
		return
	}
	r.lastPrice.Set(float64(v))
}

// RecordATH records the ATH value the watcher last observed.
func (r *Recorder) RecordATH(v uint64) {
	if r == nil {
		return
	}
	r.ath.Set(float64(v))
}
