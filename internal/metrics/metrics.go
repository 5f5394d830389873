package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Chain metrics
	FilesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fileflow_files_processed_total",
			Help: "The total number of files run through the processor chain",
		},
	)

	ProcessorRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileflow_processor_runs_total",
			Help: "The total number of processor invocations by outcome",
		},
		[]string{"processor", "outcome"},
	)

	ChainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fileflow_chain_duration_seconds",
			Help:    "Time spent running a file through its processor chain",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Watcher metrics
	EventsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fileflow_events_accepted_total",
			Help: "The total number of filesystem events accepted for processing",
		},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fileflow_events_dropped_total",
			Help: "The total number of filesystem events dropped before processing",
		},
		[]string{"reason"},
	)

	FilesUnstable = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fileflow_files_unstable_total",
			Help: "The total number of files skipped because they never stabilized",
		},
	)
)

// Outcome labels for ProcessorRuns.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
)
