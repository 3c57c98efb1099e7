package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the Prometheus collectors of the service
type Metrics struct {
	transitions  *prometheus.CounterVec
	conflicts    *prometheus.CounterVec
	entries      prometheus.Counter
	httpDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reinf_workflow_transitions_total",
			Help: "Successful entry stage transitions.",
		}, []string{"from", "to"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reinf_workflow_conflicts_total",
			Help: "Operations rejected because another user changed the entry or it already existed.",
		}, []string{"operation"}),
		entries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reinf_entries_created_total",
			Help: "Declaration entries created.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reinf_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.transitions, m.conflicts, m.entries, m.httpDuration)
	return m
}

// Noop returns metrics registered with a throwaway registry, for tests.
func Noop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) Transition(from, to string) {
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) Conflict(operation string) {
	m.conflicts.WithLabelValues(operation).Inc()
}

func (m *Metrics) EntryCreated() {
	m.entries.Inc()
}

// GinMiddleware observes request latency per route
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.httpDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
