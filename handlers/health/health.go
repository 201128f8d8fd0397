// Package health answers liveness probes.
package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/blackt666/immoxx--sub004/utils"
)

type Handler struct {
	DB       *gorm.DB
	Upstream string
	Timeout  time.Duration
	Logger   *zap.Logger
}

func (h *Handler) Health(c *gin.Context) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	status := http.StatusOK
	checks := gin.H{"database": "ok", "upstream": "configured"}

	if err := utils.PingDatabase(c.Request.Context(), h.DB, timeout); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("Health check: database unreachable", zap.Error(err))
		}
		checks["database"] = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if h.Upstream == "" {
		checks["upstream"] = "not configured"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}
