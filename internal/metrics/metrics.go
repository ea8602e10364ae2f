package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Operation execution metrics
var (
	// OperationsTotal counts executed operations per operator and outcome.
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grabtree_operations_total",
			Help: "Total number of executed operations.",
		},
		[]string{"operator", "status"},
	)

	// DownloadedBytesTotal counts bytes written to disk by transfer operators.
	DownloadedBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grabtree_downloaded_bytes_total",
			Help: "Total number of bytes downloaded.",
		},
	)

	// DuplicateChecksTotal counts library duplicate checks per outcome
	// (hit, miss, unavailable).
	DuplicateChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grabtree_duplicate_checks_total",
			Help: "Total number of library duplicate checks.",
		},
		[]string{"outcome"},
	)

	// MoveRollbacksTotal counts transactional move rollbacks.
	MoveRollbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grabtree_move_rollbacks_total",
			Help: "Total number of file move rollbacks.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		OperationsTotal,
		DownloadedBytesTotal,
		DuplicateChecksTotal,
		MoveRollbacksTotal,
	)
}
