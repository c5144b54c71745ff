package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workflowRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "decisiond",
			Subsystem: "workflow",
			Name:      "runs_total",
			Help:      "Workflow runs by workflow and outcome",
		},
		[]string{"workflow", "outcome"},
	)

	workflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "decisiond",
			Subsystem: "workflow",
			Name:      "duration_seconds",
			Help:      "Workflow duration in seconds, including capability and store calls",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"workflow"},
	)

	pendingDeletions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "decisiond",
			Subsystem: "workflow",
			Name:      "pending_deletions",
			Help:      "Delete requests awaiting confirmation",
		},
	)
)
