package flow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeCommitted = "committed"
	outcomeRejected  = "rejected"
	outcomeMissing   = "missing"
	outcomeError     = "error"
	outcomeSkipped   = "skipped"
	outcomeSuccess   = "success"
)

// Metric definitions with appropriate labels.
var (
	// invocationsTotal counts invocations by subject type, attribute, action and outcome.
	invocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flow_invocations_total",
		Help: "Total number of flow invocations by subject type, attribute, action and outcome",
	}, []string{"subject_type", "attribute", "action", "outcome"})

	// invocationDuration tracks the time spent in one invocation, wrapper included.
	invocationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flow_invocation_duration_seconds",
		Help:    "Duration of flow invocations by subject type, attribute and outcome",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"subject_type", "attribute", "outcome"})

	// mergesTotal counts merges, extensions included.
	mergesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flow_merges_total",
		Help: "Total number of merges into flow definitions by subject type, attribute and outcome",
	}, []string{"subject_type", "attribute", "outcome"})
)

func recordInvocation(subjectType, attribute, action, outcome string, duration time.Duration) {
	subjectType = sanitizeLabel(subjectType)

	invocationsTotal.WithLabelValues(subjectType, attribute, action, outcome).Inc()
	invocationDuration.WithLabelValues(subjectType, attribute, outcome).Observe(duration.Seconds())
}

func sanitizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}

	return value
}
