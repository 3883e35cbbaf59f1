// Package metrics exposes prometheus collectors for proof runs and the
// HTTP front end.
package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes.
const (
	OutcomeVerified      = "verified"
	OutcomeNotVerified   = "not_verified"
	OutcomeInvalidDomain = "invalid_domain"
	OutcomeError         = "error"
)

// Run stages.
const (
	StageResolve = "resolve"
	StageProve   = "prove"
	StageVerify  = "verify"
	StagePersist = "persist"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs          *prometheus.CounterVec
	stageLatency  *prometheus.HistogramVec
	requests      *prometheus.CounterVec
	responseTime  *prometheus.HistogramVec
	activeRequest prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zkmail_runs_total",
			Help: "The total number of proof runs by outcome",
		}, []string{"outcome"}),

		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zkmail_stage_duration_seconds",
			Help:    "Duration of proof run stages",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rest_requests_processed_total",
			Help: "The total number of processed REST requests",
		}, []string{"method", "endpoint", "status"}),

		responseTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "restapi_response_time_milliseconds",
			Help:    "REST API response time distributions",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 30000},
		}, []string{"method", "endpoint"}),

		activeRequest: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "active_rest_connections",
			Help: "Number of active REST API connections",
		}),
	}

	reg.MustRegister(m.runs, m.stageLatency, m.requests, m.responseTime, m.activeRequest)
	return m
}

// RunFinished counts a run with the given outcome.
func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long a stage took since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Middleware records request counts and latencies.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		m.activeRequest.Inc()
		defer m.activeRequest.Dec()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, endpoint, statusClass(c.Writer.Status())).Inc()
		m.responseTime.WithLabelValues(c.Request.Method, endpoint).Observe(float64(time.Since(start).Milliseconds()))
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
