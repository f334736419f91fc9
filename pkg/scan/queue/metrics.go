package queue

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pyneda/consentscan/db"
	"github.com/pyneda/consentscan/pkg/scan/worker"
)

// Metrics holds the queue collectors. A nil *Metrics records nothing.
type Metrics struct {
	finished *prometheus.CounterVec
	enqueued prometheus.Counter
	duration prometheus.Histogram
	depth    *prometheus.GaugeVec
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// NewMetrics creates the queue collectors and registers them when reg is not nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		finished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "consentscan",
				Subsystem: "queue",
				Name:      "jobs_finished_total",
				Help:      "Number of scan jobs that reached a terminal state",
			},
			[]string{"status"},
		),
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "consentscan",
			Subsystem: "queue",
			Name:      "jobs_enqueued_total",
			Help:      "Number of scan jobs added to the queue",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "consentscan",
			Subsystem: "queue",
			Name:      "job_duration_seconds",
			Help:      "Time spent executing scan jobs",
			Buckets:   []float64{1, 5, 10, 20, 30, 45, 60, 90, 120, 300},
		}),
		depth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "consentscan",
				Subsystem: "queue",
				Name:      "jobs",
				Help:      "Number of scan jobs per status at the last stats read",
			},
			[]string{"status"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.finished, m.enqueued, m.duration, m.depth)
	}
	return m
}

// DefaultMetrics returns collectors registered once with the default registry
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func (m *Metrics) jobEnqueued() {
	if m == nil {
		return
	}
	m.enqueued.Inc()
}

func (m *Metrics) jobFinished(outcome worker.Outcome) {
	if m == nil {
		return
	}
	m.finished.WithLabelValues(string(outcome.Status)).Inc()
	m.duration.Observe(outcome.Duration.Seconds())
}

func (m *Metrics) setDepth(counts map[db.ScanJobStatus]int64) {
	if m == nil {
		return
	}
	for _, status := range db.ScanJobStatuses {
		m.depth.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
