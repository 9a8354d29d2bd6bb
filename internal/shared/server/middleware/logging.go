package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"interview-backend/internal/shared/metrics"
	"interview-backend/internal/shared/telemetry"
)

// attemptIDKey is set by handlers that resolve an attempt.
const attemptIDKey = "attemptId"

// Logging emits a structured log per request and counts it in metrics.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		metrics.ObserveRequest(c.Request.Method, route, status)

		telemetry.Info("request.complete", map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       route,
			"status":      status,
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"attempt_id":  attemptIDFromContext(c),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		})
	}
}

// attemptIDFromContext returns the attempt a request addressed, if any.
func attemptIDFromContext(c *gin.Context) string {
	if id := c.GetString(attemptIDKey); id != "" {
		return id
	}
	route := c.FullPath()
	if strings.HasSuffix(route, "/attempts/:id") || strings.Contains(route, "/interviews/:id") {
		return c.Param("id")
	}
	return ""
}
