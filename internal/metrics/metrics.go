// Package metrics defines the Prometheus collectors hostcheck exports.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Step result labels
const (
	StepOK      = "ok"
	StepNonzero = "nonzero"
	StepTimeout = "timeout"
	StepError   = "error"
)

// Metrics holds Prometheus metrics for job execution.
//
// Metrics:
//   - hostcheck_jobs_submitted_total{outcome} - accepted or the rejecting stage
//   - hostcheck_jobs_completed_total{status} - terminal job status
//   - hostcheck_steps_total{result} - ok, nonzero, timeout or error
//   - hostcheck_step_duration_seconds - remote step wall time
type Metrics struct {
	JobsSubmitted *prometheus.CounterVec
	JobsCompleted *prometheus.CounterVec
	Steps         *prometheus.CounterVec
	StepDuration  prometheus.Histogram
}

// New registers the collectors with reg. A nil reg yields unregistered
// collectors, which keeps tests from sharing global state.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostcheck_jobs_submitted_total",
				Help: "Total number of job submissions by outcome",
			},
			[]string{"outcome"},
		),
		JobsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostcheck_jobs_completed_total",
				Help: "Total number of jobs that reached a terminal status",
			},
			[]string{"status"},
		),
		Steps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostcheck_steps_total",
				Help: "Total number of executed steps by result",
			},
			[]string{"result"},
		),
		StepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hostcheck_step_duration_seconds",
				Help:    "Duration of remote step execution in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
	}
}

// ObserveStep records one executed step.
func (m *Metrics) ObserveStep(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Steps.WithLabelValues(result).Inc()
	m.StepDuration.Observe(d.Seconds())
}

// Submitted records a submission outcome.
func (m *Metrics) Submitted(outcome string) {
	if m == nil {
		return
	}
	m.JobsSubmitted.WithLabelValues(outcome).Inc()
}

// Completed records a terminal job status.
func (m *Metrics) Completed(status string) {
	if m == nil {
		return
	}
	m.JobsCompleted.WithLabelValues(status).Inc()
}

// StepResult classifies an exit code into a step result label.
func StepResult(exitCode int) string {
	switch exitCode {
	case 0:
		return StepOK
	case 124:
		return StepTimeout
	case 255:
		return StepError
	default:
		return StepNonzero
	}
}
