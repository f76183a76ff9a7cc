package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

var Module = fx.Module("metrics",
	fx.Provide(NewRegistry),
	fx.Provide(New),
)

func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	return registry
}

// Metrics exposes the application-level prometheus instruments.
type Metrics struct {
	deliveries      *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	lockWait        prometheus.Histogram
	gatewayRequests *prometheus.HistogramVec
	httpRequests    *prometheus.HistogramVec
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paysync_webhook_deliveries_total",
			Help: "Webhook deliveries handled, by entity type and outcome.",
		}, []string{"entity", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paysync_order_transitions_total",
			Help: "Order transaction transitions applied by the reconciler.",
		}, []string{"transition"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "paysync_order_lock_wait_seconds",
			Help:    "Time spent acquiring the per-order lock.",
			Buckets: prometheus.DefBuckets,
		}),
		gatewayRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "paysync_gateway_request_seconds",
			Help:    "Gateway read API request durations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"resource"}),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "paysync_http_request_seconds",
			Help:    "Inbound HTTP request durations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
	registry.MustRegister(m.deliveries, m.transitions, m.lockWait, m.gatewayRequests, m.httpRequests)
	return m
}

func (m *Metrics) RecordDelivery(entity, outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(entity, outcome).Inc()
}

func (m *Metrics) RecordTransition(transition string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(transition).Inc()
}

func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

func (m *Metrics) ObserveGatewayRequest(resource string, d time.Duration) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(resource).Observe(d.Seconds())
}

// GinMiddleware records request durations per route template.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequests.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}
