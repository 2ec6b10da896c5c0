// Package metrics exposes Prometheus instruments for transitions, triggers,
// notifications, background jobs and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

var (
	transitionBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1}
	httpBuckets       = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	jobBuckets        = []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300}
)

// Metrics holds every instrument. It satisfies the recorder interfaces of
// the workflow engine and the trigger service.
type Metrics struct {
	TransitionsTotal   *prometheus.CounterVec
	TransitionDuration *prometheus.HistogramVec
	TriggersTotal      *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	JobRunsTotal       *prometheus.CounterVec
	JobDuration        *prometheus.HistogramVec
	JobItemsTotal      *prometheus.CounterVec
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the instruments with reg. Pass a fresh registry in tests.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rentflow_workflow_transitions_total",
			Help: "Workflow transitions by entity, event and outcome",
		}, []string{"subject_type", "event", "outcome"}),
		TransitionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rentflow_workflow_transition_duration_seconds",
			Help:    "Time spent validating and committing a transition",
			Buckets: transitionBuckets,
		}, []string{"subject_type", "event"}),
		TriggersTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rentflow_trigger_executions_total",
			Help: "Trigger executions by entity type and outcome",
		}, []string{"instance_type", "outcome"}),
		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rentflow_notifications_total",
			Help: "Notification deliveries by channel and status",
		}, []string{"channel", "status"}),
		JobRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rentflow_job_runs_total",
			Help: "Background job runs by job and outcome",
		}, []string{"job", "outcome"}),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rentflow_job_duration_seconds",
			Help:    "Background job run time",
			Buckets: jobBuckets,
		}, []string{"job"}),
		JobItemsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rentflow_job_items_total",
			Help: "Items acted on by background jobs",
		}, []string{"job"}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rentflow_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rentflow_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: httpBuckets,
		}, []string{"method", "route"}),
		gatherer: reg,
	}
}

var _ workflows.Recorder = (*Metrics)(nil)

func (m *Metrics) ObserveTransition(subjectType string, event workflows.Event, outcome string, elapsed time.Duration) {
	m.TransitionsTotal.WithLabelValues(subjectType, string(event), outcome).Inc()
	m.TransitionDuration.WithLabelValues(subjectType, string(event)).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveTrigger(instanceType, outcome string) {
	m.TriggersTotal.WithLabelValues(instanceType, outcome).Inc()
}

func (m *Metrics) ObserveNotification(channel, status string) {
	m.NotificationsTotal.WithLabelValues(channel, status).Inc()
}

// ObserveJob records one run of a background job and the number of items
// it acted on.
func (m *Metrics) ObserveJob(job, outcome string, items int, elapsed time.Duration) {
	m.JobRunsTotal.WithLabelValues(job, outcome).Inc()
	m.JobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
	if items > 0 {
		m.JobItemsTotal.WithLabelValues(job).Add(float64(items))
	}
}

// Middleware counts requests by matched route so path parameters do not
// explode label cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
