// Package metrics exposes dispatch and scheduler counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements engine.Observer and scheduler.Observer.
type Metrics struct {
	// Dispatch outcomes by flow and outcome kind
	Dispatches *prometheus.CounterVec

	DispatchLatency prometheus.Histogram

	// Aborted dispatches by defect code
	Defects *prometheus.CounterVec

	DeliveryFailures prometheus.Counter

	// Scheduler activity by job kind
	JobsScheduled *prometheus.CounterVec
	JobsFired     *prometheus.CounterVec
	CancelledJobs prometheus.Counter
	PendingJobs   prometheus.Gauge
}

// New creates a Metrics instance registered with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Dispatches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studybot_dispatch_total",
			Help: "Dispatched events by active flow and outcome",
		}, []string{"flow", "outcome"}),

		DispatchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "studybot_dispatch_duration_seconds",
			Help:    "Time from dispatch to commit, excluding delivery",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		Defects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studybot_dispatch_defects_total",
			Help: "Dispatches aborted by a structural defect, by code",
		}, []string{"code"}),

		DeliveryFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "studybot_delivery_failures_total",
			Help: "Messages the transport failed to deliver",
		}),

		JobsScheduled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studybot_jobs_scheduled_total",
			Help: "Jobs added to the scheduler by kind",
		}, []string{"kind"}),

		JobsFired: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studybot_jobs_fired_total",
			Help: "Job callbacks run by kind and outcome",
		}, []string{"kind", "outcome"}), // outcome: "ok", "error", "panic"

		CancelledJobs: f.NewCounter(prometheus.CounterOpts{
			Name: "studybot_jobs_cancelled_total",
			Help: "Pending jobs removed before firing",
		}),

		PendingJobs: f.NewGauge(prometheus.GaugeOpts{
			Name: "studybot_jobs_pending",
			Help: "Jobs waiting in the scheduler queue",
		}),
	}
}

// Dispatched records one dispatch.
func (m *Metrics) Dispatched(flow, outcome string, elapsed time.Duration) {
	if m != nil {
		m.Dispatches.WithLabelValues(flow, outcome).Inc()
		m.DispatchLatency.Observe(elapsed.Seconds())
	}
}

// Defect records an aborted dispatch.
func (m *Metrics) Defect(code string) {
	if m != nil {
		m.Defects.WithLabelValues(code).Inc()
	}
}

// DeliveryFailed records a failed send or edit.
func (m *Metrics) DeliveryFailed() {
	if m != nil {
		m.DeliveryFailures.Inc()
	}
}

// JobScheduled records a new job.
func (m *Metrics) JobScheduled(kind string) {
	if m != nil {
		m.JobsScheduled.WithLabelValues(kind).Inc()
	}
}

// JobFired records a callback run.
func (m *Metrics) JobFired(kind, outcome string) {
	if m != nil {
		m.JobsFired.WithLabelValues(kind, outcome).Inc()
	}
}

// JobsCancelled records removed jobs.
func (m *Metrics) JobsCancelled(n int) {
	if m != nil && n > 0 {
		m.CancelledJobs.Add(float64(n))
	}
}

// QueueDepth records the number of pending jobs.
func (m *Metrics) QueueDepth(n int) {
	if m != nil {
		m.PendingJobs.Set(float64(n))
	}
}
