package dspatch

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jamiealquiza/tachymeter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus series a Circuit reports when attached via
// Circuit.SetMetrics/AddComponent, plus a tachymeter window used by Stats
// for a cheap in-process latency snapshot without scraping Prometheus at
// all. A nil *Metrics is valid everywhere it is used: every Record* method
// is a no-op on a nil receiver, so components never have to branch on
// whether metrics are attached.
type Metrics struct {
	ticksTotal         *prometheus.CounterVec
	tickDuration       *prometheus.HistogramVec
	feedbackEdgesTotal *prometheus.CounterVec
	poolQueueDepth     *prometheus.GaugeVec

	registry *prometheus.Registry
	tach     *tachymeter.Tachymeter
}

// NewMetrics creates a Metrics recorder with its own Prometheus registry and
// a tachymeter window sized to hold the last windowSize tick durations.
func NewMetrics(windowSize int) *Metrics {
	if windowSize < 1 {
		windowSize = 2048
	}
	registry := prometheus.NewRegistry()

	m := &Metrics{
		ticksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dspatch_ticks_total",
				Help: "Total number of Process calls run, by component",
			},
			[]string{"component"},
		),
		tickDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dspatch_tick_duration_seconds",
				Help:    "Process call latency in seconds, by component",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"component"},
		),
		feedbackEdgesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dspatch_feedback_edges_total",
				Help: "Total number of re-entrant Tick calls detected as feedback edges, by component",
			},
			[]string{"component"},
		),
		poolQueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dspatch_pool_queue_depth",
				Help: "Number of queued jobs in a shared ThreadPool's per-buffer queue",
			},
			[]string{"buffer"},
		),
		registry: registry,
		tach:     tachymeter.New(&tachymeter.Config{Size: windowSize}),
	}

	registry.MustRegister(
		m.ticksTotal,
		m.tickDuration,
		m.feedbackEdgesTotal,
		m.poolQueueDepth,
	)
	return m
}

// RecordTick records one completed Process call's latency for component.
func (m *Metrics) RecordTick(component string, d time.Duration) {
	if m == nil {
		return
	}
	m.ticksTotal.WithLabelValues(component).Inc()
	m.tickDuration.WithLabelValues(component).Observe(d.Seconds())
	m.tach.AddTime(d)
}

// RecordFeedbackEdge records that one of component's incoming wires was
// marked as a feedback edge: its upstream component's Tick was re-entered
// before that component finished pulling its own inputs for the buffer.
func (m *Metrics) RecordFeedbackEdge(component string) {
	if m == nil {
		return
	}
	m.feedbackEdgesTotal.WithLabelValues(component).Inc()
}

// SetPoolQueueDepth reports the current queue length for one ThreadPool
// buffer. ThreadPool implementations that want this metric call it after
// every AddJob/dequeue.
func (m *Metrics) SetPoolQueueDepth(buffer int, depth int) {
	if m == nil {
		return
	}
	m.poolQueueDepth.WithLabelValues(bufferLabel(buffer)).Set(float64(depth))
}

// Handler returns the Prometheus scrape handler for this Metrics' registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry, for callers that
// want to merge it into a larger process-wide registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Stats returns a tachymeter snapshot (avg/min/p50/p75/p99/max, rate) over
// the most recent tick durations, independent of whatever is scraping
// Prometheus. Used by Circuit.Stats for callers that want numbers without
// standing up an HTTP server.
func (m *Metrics) Stats() *tachymeter.Metrics {
	if m == nil {
		return nil
	}
	calc := m.tach.Calc()
	return calc
}

func bufferLabel(b int) string {
	return "b" + strconv.Itoa(b)
}
