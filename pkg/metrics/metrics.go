package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the appointment-lifecycle application metrics.
type Metrics struct {
	TransitionsTotal  *prometheus.CounterVec
	TransitionLatency *prometheus.HistogramVec

	QueueAdmissionsTotal *prometheus.CounterVec

	VerificationAttempts *prometheus.CounterVec

	SweepRunsTotal      prometheus.Counter
	SweepCancelledTotal *prometheus.CounterVec
	SweepRowFailures    prometheus.Counter
}

// New creates and registers all application metrics.
func New(namespace string) *Metrics {
	return &Metrics{
		TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_transitions_total",
			Help:      "Total appointment state transitions by action and outcome",
		}, []string{"action", "outcome"}),
		TransitionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "appointment_transition_duration_seconds",
			Help:      "Duration of appointment state transitions",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"action"}),
		QueueAdmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_admissions_total",
			Help:      "Total triage-queue admissions by priority tier",
		}, []string{"priority"}),
		VerificationAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_attempts_total",
			Help:      "Identity verification attempts by method and result",
		}, []string{"method", "result"}),
		SweepRunsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Number of closing-time sweep invocations",
		}),
		SweepCancelledTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_cancelled_total",
			Help:      "Appointments cancelled by the closing-time sweep",
		}, []string{"kind"}),
		SweepRowFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_row_failures_total",
			Help:      "Sweep rows that rolled back and were skipped",
		}),
	}
}
