// Package metrics defines the Prometheus collectors of the pool. All
// methods are safe on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "filepool"

type Metrics struct {
	downloads        *prometheus.CounterVec
	downloadBytes    prometheus.Counter
	downloadDuration prometheus.Histogram
	enqueued         prometheus.Counter
	inFlight         prometheus.Gauge
	invalidated      prometheus.Counter
	removed          prometheus.Counter
	hookRuns         *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		downloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Finished downloads by result.",
		}, []string{"result"}),
		downloadBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Bytes written to the content store.",
		}),
		downloadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Time from dequeue to commit.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		enqueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enqueued_total",
			Help:      "Calls that added or refreshed a queue entry.",
		}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "downloads_in_flight",
			Help:      "Transfers currently running, at most one per site.",
		}),
		invalidated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidated_total",
			Help:      "Files marked stale.",
		}),
		removed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "removed_total",
			Help:      "Files removed from the pool.",
		}),
		hookRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cron_runs_total",
			Help:      "Cron hook executions by hook and result.",
		}, []string{"hook", "result"}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) Enqueued() {
	if m == nil {
		return
	}
	m.enqueued.Inc()
}

// DownloadStarted returns a func to be called with the outcome.
func (m *Metrics) DownloadStarted() func(size int64, err error) {
	if m == nil {
		return func(int64, error) {}
	}
	start := time.Now()
	m.inFlight.Inc()
	return func(size int64, err error) {
		m.inFlight.Dec()
		m.downloads.WithLabelValues(result(err)).Inc()
		if err == nil {
			m.downloadBytes.Add(float64(size))
			m.downloadDuration.Observe(time.Since(start).Seconds())
		}
	}
}

func (m *Metrics) Invalidated(n int) {
	if m == nil {
		return
	}
	m.invalidated.Add(float64(n))
}

func (m *Metrics) Removed(n int) {
	if m == nil {
		return
	}
	m.removed.Add(float64(n))
}

func (m *Metrics) HookRun(name string, err error) {
	if m == nil {
		return
	}
	m.hookRuns.WithLabelValues(name, result(err)).Inc()
}
