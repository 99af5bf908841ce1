// Package metrics provides Prometheus metrics for the task api-service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Create failure reasons
const (
	ReasonValidation = "validation"
	ReasonForbidden  = "forbidden"
	ReasonStorage    = "storage"
)

var (
	TasksCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_tasks_created_total",
			Help: "Total number of tasks inserted",
		},
	)
	TaskCreateFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_task_create_failures_total",
			Help: "Total number of rejected or failed task inserts",
		},
		[]string{"reason"},
	)
	TaskListRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_task_list_requests_total",
			Help: "Total number of task list reads",
		},
		[]string{"mode"},
	)
	TaskEventPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_task_event_publish_failures_total",
			Help: "Total number of task.created events that could not be published",
		},
	)
	SessionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_session_events_total",
			Help: "Total number of session change events published",
		},
		[]string{"type"},
	)
	SessionStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_session_streams",
			Help: "Number of open session event streams",
		},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func RecordTaskCreated() {
	TasksCreated.Inc()
}

func RecordTaskCreateFailure(reason string) {
	TaskCreateFailures.WithLabelValues(reason).Inc()
}

// RecordTaskList counts a list read; paginated reads are labelled "page"
func RecordTaskList(paginated bool) {
	mode := "full"
	if paginated {
		mode = "page"
	}
	TaskListRequests.WithLabelValues(mode).Inc()
}

func RecordTaskEventPublishFailure() {
	TaskEventPublishFailures.Inc()
}

func RecordSessionEvent(eventType string) {
	SessionEvents.WithLabelValues(eventType).Inc()
}

func SessionStreamOpened() {
	SessionStreams.Inc()
}

func SessionStreamClosed() {
	SessionStreams.Dec()
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
