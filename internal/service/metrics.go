package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for edit batches.
type Metrics struct {
	editsApplied  prometheus.Counter
	editsRejected *prometheus.CounterVec
	conflicts     prometheus.Counter
	batchLatency  *prometheus.HistogramVec
	reconciled    prometheus.Counter
}

// NewMetrics registers the collectors with reg. A nil reg keeps them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		editsApplied: f.NewCounter(prometheus.CounterOpts{
			Namespace: "docnav",
			Subsystem: "edits",
			Name:      "applied_total",
			Help:      "Edit operations committed to the store",
		}),
		editsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docnav",
			Subsystem: "edits",
			Name:      "rejected_total",
			Help:      "Edit operations rejected before commit",
		}, []string{"reason"}),
		conflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "docnav",
			Subsystem: "edits",
			Name:      "conflicts_total",
			Help:      "Edit batches rejected for a stale document version",
		}),
		batchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docnav",
			Subsystem: "edits",
			Name:      "batch_duration_seconds",
			Help:      "Time to validate, resolve and commit an edit batch",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"status"}),
		reconciled: f.NewCounter(prometheus.CounterOpts{
			Namespace: "docnav",
			Subsystem: "ids",
			Name:      "corrected_total",
			Help:      "Document identifiers corrected by reconciliation",
		}),
	}
}
