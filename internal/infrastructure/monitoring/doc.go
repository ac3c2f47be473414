// Package monitoring exports StudyDesk's Prometheus metrics: API traffic,
// panel operations, focus sessions and locks, gateway writes per tier,
// reconciliation, breaker state, content generation and the event stream.
//
// Each Metrics value owns a private registry, so tests can create as many
// as they like. Methods on a nil *Metrics panic; NewTimer and Timer.Stop
// accept nil.
//
//	metrics := monitoring.NewMetrics()
//	router.Use(monitoring.Middleware(metrics, "/api/v1/stream"))
//	router.GET("/metrics", gin.WrapH(monitoring.Handler(metrics)))
package monitoring
