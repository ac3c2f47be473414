package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// MetricsSummary provides high-level metrics for dashboards that do not
// scrape Prometheus
type MetricsSummary struct {
	Timestamp         time.Time `json:"timestamp"`
	TotalRequests     int64     `json:"total_requests"`
	AverageLatencyMs  float64   `json:"average_latency_ms"`
	ErrorRate         float64   `json:"error_rate"`
	ActiveWorkspaces  int       `json:"active_workspaces"`
	ActiveConnections int64     `json:"active_connections"`
	LocalFallbacks    int64     `json:"local_fallbacks"`
	RemoteState       string    `json:"remote_state,omitempty"`
	UptimeSeconds     float64   `json:"uptime_seconds"`
}

// MetricsSummary returns the JSON summary of the collector
func (h *Handlers) MetricsSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.summarize())
}

func (h *Handlers) summarize() MetricsSummary {
	out := MetricsSummary{
		Timestamp:        time.Now(),
		ActiveWorkspaces: h.workspaces.Count(),
	}
	if h.breaker != nil {
		out.RemoteState = h.breaker.State().String()
	}
	if h.registry == nil {
		return out
	}

	snapshot := h.registry.Snapshot()
	out.TotalRequests = snapshot.TotalRequests
	out.ActiveConnections = snapshot.ActiveConnections
	out.LocalFallbacks = snapshot.LocalFallbacks
	out.UptimeSeconds = h.registry.UptimeSeconds()

	if snapshot.RequestCount > 0 {
		out.AverageLatencyMs = (snapshot.TotalDuration / float64(snapshot.RequestCount)) * 1000
	}
	if snapshot.TotalRequests > 0 {
		out.ErrorRate = float64(snapshot.TotalErrors) / float64(snapshot.TotalRequests)
	}
	return out
}
