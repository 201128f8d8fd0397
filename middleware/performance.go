package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/blackt666/immoxx--sub004/monitor"
)

// Performance feeds every request into the ring buffer and Prometheus. The
// ring keeps the canonical path of proxied requests; Prometheus only sees a
// bounded label.
func Performance(mon *monitor.Monitor, metrics *monitor.Metrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics != nil {
			metrics.IncInFlight()
			defer metrics.DecInFlight()
		}

		start := time.Now()
		c.Next()
		took := time.Since(start)

		route, label := c.FullPath(), c.FullPath()
		if route == "" {
			route = monitor.CanonicalRoute(c.Request.URL.Path)
			if metrics != nil {
				label = metrics.ProxiedRoute(c.Request.URL.Path)
			}
		}
		status := c.Writer.Status()

		mon.Record(monitor.Sample{
			Method:    c.Request.Method,
			Route:     route,
			Status:    status,
			Duration:  took,
			Timestamp: start,
		})
		if metrics != nil {
			metrics.ObserveRequest(c.Request.Method, label, status, took)
		}

		if mon.IsSlow(took) {
			logger.Warn("Slow request",
				zap.String("method", c.Request.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("took", took),
				zap.Duration("threshold", mon.SlowThreshold()))
		}
	}
}
