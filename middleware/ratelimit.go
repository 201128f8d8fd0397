package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/blackt666/immoxx--sub004/monitor"
	"github.com/blackt666/immoxx--sub004/ratelimit"
	"github.com/blackt666/immoxx--sub004/security"
)

// RateLimit admits requests per client IP and path category.
func RateLimit(limiter *ratelimit.Limiter, classifier ratelimit.Classifier, events security.Emitter, metrics *monitor.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		category := classifier.Classify(c.Request.URL.Path)
		ip := c.ClientIP()

		d := limiter.Allow(category, ip)
		if d.Limit > 0 {
			h := c.Writer.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		}

		if !d.Allowed {
			retryAfter := int(math.Ceil(d.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			if metrics != nil {
				metrics.RateLimited(string(category))
			}
			severity := security.SeverityMedium
			if category == ratelimit.CategoryLogin {
				severity = security.SeverityHigh
			}
			e := security.RequestEvent(c.Request, ip, security.EventRateLimitExceeded, severity, "Rate limit exceeded")
			e.Details = map[string]interface{}{
				"category": string(category),
				"limit":    d.Limit,
				"method":   c.Request.Method,
			}
			events.Emit(c.Request.Context(), e)

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests, please try again later.",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()

		if rule, _ := limiter.Rule(category); rule.RefundSuccess && c.Writer.Status() < http.StatusBadRequest {
			limiter.Refund(category, ip, d.WindowStart)
		}
	}
}
