// Package metrics exposes task execution and scheduler state as Prometheus
// metrics. All methods are safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels executions whose body returned no error.
	OutcomeSuccess = "success"
	// OutcomeError labels executions whose body failed.
	OutcomeError = "error"
)

type Metrics struct {
	executionsTotal  *prometheus.CounterVec
	executionSeconds *prometheus.HistogramVec
	tasks            *prometheus.GaugeVec
	schedulerRunning prometheus.Gauge
	skippedTotal     prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg uses the
// default registerer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		executionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_executions_total",
				Help:      "Total number of task executions",
			},
			[]string{"type", "outcome"},
		),
		executionSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_execution_duration_seconds",
				Help:      "Duration of task executions",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"type"},
		),
		tasks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tasks",
				Help:      "Number of defined tasks by state",
			},
			[]string{"state"},
		),
		schedulerRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scheduler_running",
				Help:      "Scheduler state: 1=running, 0=stopped",
			},
		),
		skippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_skipped_total",
				Help:      "Scheduled fires skipped because the task was still running",
			},
		),
	}

	reg.MustRegister(
		m.executionsTotal,
		m.executionSeconds,
		m.tasks,
		m.schedulerRunning,
		m.skippedTotal,
	)

	return m
}

// RecordExecution counts one execution of a task of taskType.
func (m *Metrics) RecordExecution(taskType string, ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeError
	}
	m.executionsTotal.WithLabelValues(taskType, outcome).Inc()
	m.executionSeconds.WithLabelValues(taskType).Observe(duration.Seconds())
}

// SetTaskCounts sets the enabled and disabled task gauges.
func (m *Metrics) SetTaskCounts(enabled, disabled int) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues("enabled").Set(float64(enabled))
	m.tasks.WithLabelValues("disabled").Set(float64(disabled))
}

func (m *Metrics) SetSchedulerRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.schedulerRunning.Set(1)
	} else {
		m.schedulerRunning.Set(0)
	}
}

func (m *Metrics) IncSkipped() {
	if m == nil {
		return
	}
	m.skippedTotal.Inc()
}
