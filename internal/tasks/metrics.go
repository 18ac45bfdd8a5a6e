package tasks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"language-toolkit/models"
)

// Metrics holds the Prometheus collectors for tasks and upstream calls.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Counters
	tasksSubmitted *prometheus.CounterVec
	tasksFinished  *prometheus.CounterVec
	providerCalls  *prometheus.CounterVec

	// Gauges
	tasksRunning *prometheus.GaugeVec

	// Histograms
	taskDuration    *prometheus.HistogramVec
	providerLatency *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which tests use to avoid global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tasksSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolkit_tasks_submitted_total",
				Help: "Total number of tasks submitted",
			},
			[]string{"kind"},
		),
		tasksFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolkit_tasks_finished_total",
				Help: "Total number of tasks that reached a terminal state",
			},
			[]string{"kind", "status"},
		),
		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolkit_provider_calls_total",
				Help: "Upstream API calls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		tasksRunning: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "toolkit_tasks_running",
				Help: "Current number of running tasks",
			},
			[]string{"kind"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolkit_task_duration_seconds",
				Help:    "Task execution duration in seconds",
				Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 300, 600, 1800},
			},
			[]string{"kind"},
		),
		providerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolkit_provider_call_duration_seconds",
				Help:    "Upstream API call latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.tasksSubmitted,
			m.tasksFinished,
			m.providerCalls,
			m.tasksRunning,
			m.taskDuration,
			m.providerLatency,
		)
	}
	return m
}

func (m *Metrics) submitted(kind models.OperationKind) {
	if m == nil {
		return
	}
	m.tasksSubmitted.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) started(kind models.OperationKind) {
	if m == nil {
		return
	}
	m.tasksRunning.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) finished(kind models.OperationKind, status models.TaskStatus, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.tasksRunning.WithLabelValues(string(kind)).Dec()
	m.tasksFinished.WithLabelValues(string(kind), string(status)).Inc()
	m.taskDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// ObserveCall records one upstream call. outcome is "ok" or an error kind.
func (m *Metrics) ObserveCall(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(provider, outcome).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}
