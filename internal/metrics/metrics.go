package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fichas"

var (
	documentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents processed, by mode and final status",
		},
		[]string{"mode", "status"},
	)

	recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records extracted, by mode",
		},
		[]string{"mode"},
	)

	antiMergeTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "antimerge_suppressed_total",
			Help:      "Fallback values left empty because they began with another label",
		},
	)

	spanFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "span_failures_total",
			Help:      "Span workers that failed and produced a partial record",
		},
	)

	extractionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_duration_seconds",
			Help:      "Time to read, segment and extract one document",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)

	exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Export files written, by format and outcome",
		},
		[]string{"format", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		documentsTotal,
		recordsTotal,
		antiMergeTotal,
		spanFailuresTotal,
		extractionDuration,
		exportsTotal,
	)
}

// ObserveDocument records the outcome of one document.
func ObserveDocument(mode, status string, records, suppressed int, elapsed time.Duration) {
	documentsTotal.WithLabelValues(mode, status).Inc()
	if records > 0 {
		recordsTotal.WithLabelValues(mode).Add(float64(records))
	}
	if suppressed > 0 {
		antiMergeTotal.Add(float64(suppressed))
	}
	extractionDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// SpanFailed counts a span worker failure.
func SpanFailed() { spanFailuresTotal.Inc() }

// ObserveExport records one export attempt.
func ObserveExport(format string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	exportsTotal.WithLabelValues(format, outcome).Inc()
}
