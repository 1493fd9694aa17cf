package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kybervision_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kybervision_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kybervision_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Upload and streaming metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kybervision_uploads_total",
			Help: "Total number of video uploads",
		},
		[]string{"status"}, // "success", "failure"
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kybervision_upload_bytes_total",
			Help: "Total bytes of uploaded video accepted",
		},
	)

	StreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kybervision_stream_requests_total",
			Help: "Total number of video streaming requests",
		},
		[]string{"endpoint", "status"},
	)

	StreamBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kybervision_stream_bytes_total",
			Help: "Total bytes served by the range streamer",
		},
	)
)

// Montage metrics
var (
	MontageJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kybervision_montage_jobs_total",
			Help: "Total number of montage jobs by terminal state",
		},
		[]string{"kind", "status"}, // status: "queued", "rejected", "completed", "failed"
	)

	MontageJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kybervision_montage_job_duration_seconds",
			Help:    "Montage job execution duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	TokenVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kybervision_token_verifications_total",
			Help: "Total artifact token verifications",
		},
		[]string{"result"}, // "valid", "invalid"
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kybervision_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kybervision_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
)

// ObserveDBQuery records one database operation's outcome and duration.
func ObserveDBQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DBQueryTotal.WithLabelValues(operation, status).Inc()
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
