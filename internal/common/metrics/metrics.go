// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_tasks_completed_total",
			Help: "Total number of tasks completed, by task kind",
		},
		[]string{"kind"},
	)

	TasksFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_tasks_failed_total",
			Help: "Total number of tasks failed, by task kind and error code",
		},
		[]string{"kind", "error_code"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_task_duration_seconds",
			Help: "Duration of task processing in seconds",
		},
		[]string{"kind"},
	)

	PersonasCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personas_created_total",
			Help: "Total number of personas materialized, by city",
		},
		[]string{"city"},
	)

	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_calls_total",
			Help: "Total number of text-generation provider calls, by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	ResponseEventsReused = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "response_events_reused_total",
			Help: "Response resolutions answered from an existing event instead of a provider call",
		},
	)
)
