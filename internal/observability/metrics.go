package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	gradingSubmissionsTotal  *prometheus.CounterVec
	gradingBatchesTotal      *prometheus.CounterVec
	gradingDurationSeconds   prometheus.Histogram
	gradingRunsActive        prometheus.Gauge
	progressClientsConnected *prometheus.GaugeVec
	reportExportsTotal       *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API
// and the grading pipeline.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		gradingSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_submissions_total",
			Help: "Total number of submissions processed, labelled by outcome.",
		}, []string{"outcome"})

		gradingBatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_batches_total",
			Help: "Total number of grading runs finished, labelled by final status.",
		}, []string{"status"})

		gradingDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grading_submission_duration_seconds",
			Help:    "Time spent parsing and scoring a single submission.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		})

		gradingRunsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grading_runs_active",
			Help: "Number of grading runs currently executing.",
		})

		progressClientsConnected = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "progress_clients_connected",
			Help: "Connected progress stream clients, labelled by transport.",
		}, []string{"transport"})

		reportExportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_exports_total",
			Help: "Total number of report exports, labelled by format.",
		}, []string{"format"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			gradingSubmissionsTotal, gradingBatchesTotal, gradingDurationSeconds,
			gradingRunsActive, progressClientsConnected, reportExportsTotal,
		)
	})
}

// HTTPRequests exposes the counter for served requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for served requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// SubmissionsProcessed exposes the per-outcome submission counter.
func SubmissionsProcessed() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingSubmissionsTotal
}

// BatchesFinished exposes the per-status batch counter.
func BatchesFinished() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingBatchesTotal
}

// GradingDuration exposes the per-submission grading histogram.
func GradingDuration() prometheus.Histogram {
	RegisterMetrics()
	return gradingDurationSeconds
}

// ActiveRuns exposes the gauge of in-flight grading runs.
func ActiveRuns() prometheus.Gauge {
	RegisterMetrics()
	return gradingRunsActive
}

// ProgressClients exposes the gauge of connected progress stream clients.
func ProgressClients() *prometheus.GaugeVec {
	RegisterMetrics()
	return progressClientsConnected
}

// ReportExports exposes the per-format report export counter.
func ReportExports() *prometheus.CounterVec {
	RegisterMetrics()
	return reportExportsTotal
}
