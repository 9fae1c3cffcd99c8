// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ApprovalDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_decisions_total",
			Help: "Total number of approval decisions by entity kind and decision",
		},
		[]string{"kind", "decision"},
	)

	ApprovalSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_submissions_total",
			Help: "Total number of entities submitted for approval",
		},
		[]string{"kind"},
	)

	ApplicationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "application_transitions_total",
			Help: "Total number of accepted application status transitions",
		},
		[]string{"from", "to"},
	)

	OperationsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "core_operations_rejected_total",
			Help: "Total number of core operations rejected with a typed error",
		},
		[]string{"operation", "error_code"},
	)

	VersionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "version_conflicts_total",
			Help: "Total number of optimistic concurrency conflicts",
		},
		[]string{"resource"},
	)

	ScoreComputations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_computations_total",
			Help: "Total number of employability score computations",
		},
		[]string{"formula_version"},
	)

	ScoreDistribution = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "employability_score",
			Help:    "Distribution of computed employability scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	NotificationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Total number of notification events handed to a sink",
		},
		[]string{"sink", "status"},
	)
)
