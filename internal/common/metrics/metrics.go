// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Message outcomes recorded by MessagesProcessed.
const (
	OutcomeSuccess     = "success"
	OutcomeParseError  = "parse_error"
	OutcomeSaveError   = "save_error"
	OutcomeDuplicate   = "duplicate"
	OutcomeDeleteError = "delete_error"
)

// Batch results recorded by BatchesProcessed.
const (
	BatchResultClean  = "clean"
	BatchResultErrors = "errors"
	BatchResultFatal  = "fatal"
)

var (
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grants_messages_processed_total",
			Help: "Total number of grant modification messages processed, by outcome",
		},
		[]string{"outcome"},
	)

	BatchesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grants_batches_total",
			Help: "Total number of non-empty batches processed, by result",
		},
		[]string{"result"},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grants_batch_size",
			Help:    "Number of messages per received batch",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)

	BatchInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grants_batch_in_flight",
			Help: "Number of messages currently being processed",
		},
	)

	MirrorErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grants_search_mirror_errors_total",
			Help: "Total number of failed search mirror writes",
		},
	)
)
