package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Middleware records request count, latency and sizes per route template.
// Routes in longLived (websocket streams) are counted but their duration
// is not observed, since it is the lifetime of the connection.
func Middleware(metrics *Metrics, longLived ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(longLived))
	for _, p := range longLived {
		skip[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		if skip[route] {
			metrics.RequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
			return
		}
		metrics.RecordHTTPRequest(c.Request.Method, route, status, time.Since(start),
			max(c.Request.ContentLength, 0), int64(max(c.Writer.Size(), 0)))
	}
}

// Handler serves the registry in the Prometheus text format
func Handler(metrics *Metrics) http.Handler {
	return promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Timer measures one component operation, such as a generation request or
// a notes mutation
type Timer struct {
	metrics       *Metrics
	component, op string
	start         time.Time
}

// NewTimer starts a timer. Stop on a timer without metrics does nothing.
func NewTimer(metrics *Metrics, component, op string) *Timer {
	return &Timer{metrics: metrics, component: component, op: op, start: time.Now()}
}

// Stop records the elapsed time under status
func (t *Timer) Stop(status string) {
	if t.metrics != nil {
		t.metrics.RecordCall(t.component, t.op, status, time.Since(t.start))
	}
}
