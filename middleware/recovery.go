package middleware

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/blackt666/immoxx--sub004/security"
)

// Recovery turns a panic into a 500 and a panic_recovered event.
func Recovery(logger *zap.Logger, events security.Emitter) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered interface{}) {
		logger.Error("Recovered from panic",
			zap.String("request_id", c.GetString(RequestIDKey)),
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered),
			zap.Stack("stack"))

		e := security.RequestEvent(c.Request, c.ClientIP(), security.EventPanicRecovered, security.SeverityHigh, "Recovered from a panic while serving a request")
		e.Details = map[string]interface{}{
			"panic":      fmt.Sprint(recovered),
			"method":     c.Request.Method,
			"request_id": c.GetString(RequestIDKey),
		}
		events.Emit(c.Request.Context(), e)

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	})
}
