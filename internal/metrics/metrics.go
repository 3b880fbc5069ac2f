// Package metrics exposes Prometheus collectors for the reconciliation engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Computations counts computed triples by resulting status.
	Computations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prepaidrecon",
		Name:      "computations_total",
		Help:      "Reconciliation computations by resulting status.",
	}, []string{"status"})

	// ComputeDuration observes the wall time of one computeOne call.
	ComputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "prepaidrecon",
		Name:      "compute_duration_seconds",
		Help:      "Time spent computing one reconciliation.",
		Buckets:   prometheus.DefBuckets,
	})

	// VersionConflicts counts optimistic-concurrency retries.
	VersionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "prepaidrecon",
		Name:      "version_conflicts_total",
		Help:      "Reconciliation writes retried after a version conflict.",
	})

	// AdjustmentTransitions counts workflow actions by action tag.
	AdjustmentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prepaidrecon",
		Name:      "adjustment_transitions_total",
		Help:      "Adjustment workflow transitions by action.",
	}, []string{"action"})

	// Warnings counts evidence warnings by code.
	Warnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prepaidrecon",
		Name:      "evidence_warnings_total",
		Help:      "Data-gap warnings attached to evidence, by code.",
	}, []string{"code"})

	// LinesImported counts ingested lines by kind.
	LinesImported = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prepaidrecon",
		Name:      "lines_imported_total",
		Help:      "Source lines imported, by kind.",
	}, []string{"kind"})

	// RPCDuration observes handled RPCs by procedure and connect code.
	RPCDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "prepaidrecon",
		Name:      "rpc_duration_seconds",
		Help:      "Handled RPCs by procedure and result code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"procedure", "code"})
)
