// Package metrics holds the Prometheus collectors for statement ingestion.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DocumentsProcessed counts finished documents by institution and outcome.
// outcome is "ok" or an error kind such as "wrong_credential".
var DocumentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "statements",
	Subsystem: "pipeline",
	Name:      "documents_total",
	Help:      "Total statement documents processed, by institution and outcome.",
}, []string{"institution", "outcome"})

// StageDuration tracks how long each pipeline stage takes.
var StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "statements",
	Subsystem: "pipeline",
	Name:      "stage_duration_seconds",
	Help:      "Time spent in each pipeline stage.",
	Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
}, []string{"stage"})

// TransactionsParsed counts parsed transactions by institution.
var TransactionsParsed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "statements",
	Subsystem: "parser",
	Name:      "transactions_total",
	Help:      "Total transactions parsed, by institution.",
}, []string{"institution"})

// InFlight tracks documents currently being processed.
var InFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "statements",
	Subsystem: "pipeline",
	Name:      "in_flight",
	Help:      "Documents currently being processed.",
})

// InboxFiles counts files picked up from the inbox by trigger ("watch" or "sweep").
var InboxFiles = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "statements",
	Subsystem: "inbox",
	Name:      "files_total",
	Help:      "Total inbox files picked up, by trigger.",
}, []string{"trigger"})
