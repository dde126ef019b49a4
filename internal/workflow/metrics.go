package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	workflowTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zone_orchestrator",
			Name:      "workflow_total",
			Help:      "Total number of finished workflows by kind and result",
		},
		[]string{"kind", "result"},
	)

	workflowDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zone_orchestrator",
			Name:      "workflow_duration_seconds",
			Help:      "Duration of workflows in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12), // 500ms to ~17min
		},
		[]string{"kind"},
	)

	inFlightGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "zone_orchestrator",
			Name:      "workflows_in_flight",
			Help:      "Number of background workflows currently running",
		},
	)
)

func init() {
	prometheus.MustRegister(workflowTotal, workflowDuration, inFlightGauge)
}

func recordWorkflowMetric(kind Kind, err error, duration float64) {
	result := "success"
	if err != nil {
		result = "error"
	}
	workflowTotal.WithLabelValues(string(kind), result).Inc()
	workflowDuration.WithLabelValues(string(kind)).Observe(duration)
}
