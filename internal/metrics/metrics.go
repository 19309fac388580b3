// Package metrics exposes Prometheus instrumentation for the HTTP API, the
// database and the marketplace workflows.
//
// A *Metrics is safe to use when nil: every recording method becomes a
// no-op, so components can take one unconditionally and the entrypoint
// passes nil when METRICS_ENABLED is off.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coursemarket"

// Outcome label values shared by the domain counters.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

type Metrics struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	requestInFlight prometheus.Gauge

	dbQueryDuration *prometheus.HistogramVec

	catalogWrites *prometheus.CounterVec
	enrollments   *prometheus.CounterVec
	degradedReads *prometheus.CounterVec
	compensations *prometheus.CounterVec

	tasksProcessed *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
}

// New builds a registry holding the runtime collectors and every metric the
// service records.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		requestInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served.",
		}),

		dbQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Duration of database statements in seconds.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .5, 1},
		}, []string{"operation", "table"}),

		catalogWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "writes_total",
			Help:      "Course create, update and delete requests by outcome.",
		}, []string{"operation", "outcome"}),
		enrollments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrollment",
			Name:      "attempts_total",
			Help:      "Enrollment attempts by outcome.",
		}, []string{"outcome"}),
		degradedReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "degraded_reads_total",
			Help:      "List reads answered with an empty degraded result after a store failure.",
		}, []string{"route"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "compensations_total",
			Help:      "Compensation entries processed by the reconciler.",
		}, []string{"kind", "outcome"}),

		tasksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "tasks_processed_total",
			Help:      "Background tasks processed by queue and status.",
		}, []string{"queue", "status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "task_duration_seconds",
			Help:      "Duration of background tasks in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"queue"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestDuration,
		m.requestTotal,
		m.requestInFlight,
		m.dbQueryDuration,
		m.catalogWrites,
		m.enrollments,
		m.degradedReads,
		m.compensations,
		m.tasksProcessed,
		m.taskDuration,
	)
	return m
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Middleware records duration, count and in-flight requests. Requests are
// labelled by route template so ids do not explode cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.requestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.requestTotal.WithLabelValues(c.Request.Method, route, status).Inc()
	}
}

// Handler serves the metrics page.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) ObserveDBQuery(operation, table string, start time.Time) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}

// CatalogWrite counts a course write. operation is create, update or delete.
func (m *Metrics) CatalogWrite(operation, outcome string) {
	if m == nil {
		return
	}
	m.catalogWrites.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) Enrollment(outcome string) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) DegradedRead(route string) {
	if m == nil {
		return
	}
	m.degradedReads.WithLabelValues(route).Inc()
}

// CompensationProcessed counts one reconciler decision. outcome is resolved,
// retry or failed.
func (m *Metrics) CompensationProcessed(kind, outcome string) {
	if m == nil {
		return
	}
	m.compensations.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) RecordTask(queue, status string, start time.Time) {
	if m == nil {
		return
	}
	m.tasksProcessed.WithLabelValues(queue, status).Inc()
	m.taskDuration.WithLabelValues(queue).Observe(time.Since(start).Seconds())
}
