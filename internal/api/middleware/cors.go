package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// DefaultCORSConfig allows the renderer origins to call the API and open the
// event stream. With no origins any origin is allowed, without credentials.
// file:// origins are accepted so a packaged desktop renderer can connect.
func DefaultCORSConfig(origins ...string) cors.Config {
	cfg := cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Content-Length", "Accept", "Origin", "X-Trace-ID", "X-Span-ID"},
		ExposeHeaders:    []string{"X-Trace-ID", "X-Span-ID", "Retry-After"},
		AllowCredentials: len(origins) > 0,
		AllowWebSockets:  true,
		AllowFiles:       true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowOrigins = nil
		cfg.AllowAllOrigins = true
	}
	return cfg
}

// CORS applies cfg to every request
func CORS(cfg cors.Config) gin.HandlerFunc {
	return cors.New(cfg)
}
