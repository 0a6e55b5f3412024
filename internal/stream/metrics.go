package stream

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus collectors for a Streamer. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Requested   prometheus.Counter
	Loaded      prometheus.Counter
	Skipped     prometheus.Counter
	Failed      prometheus.Counter
	Built       prometheus.Counter
	Cancelled   prometheus.Counter
	Released    prometheus.Counter
	Resident    prometheus.Gauge
	InFlight    prometheus.Gauge
	LoadSeconds prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg, if non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "terrastream",
			Name:      "chunks_requested_total",
			Help:      "Load requests submitted to the loader.",
		}),
		Loaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "terrastream",
			Name:      "chunks_loaded_total",
			Help:      "Chunks read and filled by the loader.",
		}),
		Skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "terrastream",
			Name:      "chunks_skipped_total",
			Help:      "Chunks the loader skipped because their load was cancelled.",
		}),
		Failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "terrastream",
			Name:      "chunks_failed_total",
			Help:      "Chunk loads that failed to read or fill.",
		}),
		Built: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "terrastream",
			Name:      "chunks_built_total",
			Help:      "Renderables built from loaded chunks.",
		}),
		Cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "terrastream",
			Name:      "chunks_cancelled_total",
			Help:      "In-flight chunks destroyed at drain because they were unloaded.",
		}),
		Released: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "terrastream",
			Name:      "chunks_released_total",
			Help:      "Chunks destroyed for any reason.",
		}),
		Resident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "terrastream",
			Name:      "chunks_resident",
			Help:      "Chunks in the active cache after the last scan.",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "terrastream",
			Name:      "chunks_in_flight",
			Help:      "Submitted chunks not yet drained.",
		}),
		LoadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "terrastream",
			Name:      "chunk_load_seconds",
			Help:      "Time to read and fill one chunk.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Requested, m.Loaded, m.Skipped, m.Failed, m.Built,
			m.Cancelled, m.Released, m.Resident, m.InFlight, m.LoadSeconds,
		)
	}
	return m
}

func (m *Metrics) requested() {
	if m != nil {
		m.Requested.Inc()
		m.InFlight.Inc()
	}
}

func (m *Metrics) drained() {
	if m != nil {
		m.InFlight.Dec()
	}
}

func (m *Metrics) loaded(d time.Duration) {
	if m != nil {
		m.Loaded.Inc()
		m.LoadSeconds.Observe(d.Seconds())
	}
}

func (m *Metrics) skipped() {
	if m != nil {
		m.Skipped.Inc()
	}
}

func (m *Metrics) failed() {
	if m != nil {
		m.Failed.Inc()
	}
}

func (m *Metrics) built() {
	if m != nil {
		m.Built.Inc()
	}
}

func (m *Metrics) cancelled() {
	if m != nil {
		m.Cancelled.Inc()
	}
}

func (m *Metrics) released() {
	if m != nil {
		m.Released.Inc()
	}
}

func (m *Metrics) resident(n int) {
	if m != nil {
		m.Resident.Set(float64(n))
	}
}
