// Package admin serves the gateway's operator API: request statistics,
// security events, limiter state, cache control and calendar maintenance.
package admin

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/blackt666/immoxx--sub004/cache"
	"github.com/blackt666/immoxx--sub004/calendar"
	"github.com/blackt666/immoxx--sub004/monitor"
	"github.com/blackt666/immoxx--sub004/ratelimit"
	"github.com/blackt666/immoxx--sub004/security"
)

// Handler is built once in main. Calendar may be nil when no OAuth client
// is configured.
type Handler struct {
	Monitor  *monitor.Monitor
	Events   *security.Pipeline
	Limiter  *ratelimit.Limiter
	Cache    *cache.Cache
	Calendar *calendar.Maintainer
	Logger   *zap.Logger
}

// parseSince accepts either a lookback duration ("1h") or an RFC3339 time.
func parseSince(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return now.Add(-d), nil
	}
	return time.Parse(time.RFC3339, raw)
}

func queryInt(c *gin.Context, name string, def, max int) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func (h *Handler) Performance(c *gin.Context) {
	since, err := parseSince(c.Query("since"), time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid since parameter"})
		return
	}
	c.JSON(http.StatusOK, h.Monitor.Stats(since))
}

func (h *Handler) RecentRequests(c *gin.Context) {
	limit := queryInt(c, "limit", 50, monitor.DefaultCapacity)
	c.JSON(http.StatusOK, gin.H{"requests": h.Monitor.Recent(limit)})
}

func (h *Handler) RateLimits(c *gin.Context) {
	rules := gin.H{}
	for _, cat := range []ratelimit.Category{ratelimit.CategoryLogin, ratelimit.CategoryAdmin, ratelimit.CategoryGeneral} {
		if rule, ok := h.Limiter.Rule(cat); ok {
			rules[string(cat)] = gin.H{
				"limit":          rule.Limit,
				"window":         rule.Window.String(),
				"refund_success": rule.RefundSuccess,
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"rules":   rules,
		"entries": h.Limiter.Snapshot(),
	})
}

func (h *Handler) CacheStats(c *gin.Context) {
	stats, err := h.Cache.Stats(c.Request.Context())
	if err != nil {
		h.Logger.Error("Failed to read cache stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read cache stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) FlushCache(c *gin.Context) {
	n, err := h.Cache.Flush(c.Request.Context())
	if err != nil {
		h.Logger.Error("Failed to flush cache", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to flush cache"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cache flushed.", "removed": n})
}

func (h *Handler) CalendarConnections(c *gin.Context) {
	if h.Calendar == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Calendar maintenance is not configured"})
		return
	}
	activeOnly := c.Query("active") == "true"
	conns, err := h.Calendar.List(c.Request.Context(), c.Query("provider"), activeOnly)
	if err != nil {
		h.Logger.Error("Failed to list calendar connections", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list calendar connections"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": conns})
}

func (h *Handler) RunCalendarMaintenance(c *gin.Context) {
	if h.Calendar == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Calendar maintenance is not configured"})
		return
	}
	report, err := h.Calendar.RunMaintenance(c.Request.Context())
	if errors.Is(err, calendar.ErrAlreadyRunning) {
		c.JSON(http.StatusConflict, gin.H{"error": "Calendar maintenance is already running"})
		return
	}
	if err != nil {
		h.Logger.Error("Calendar maintenance failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Calendar maintenance failed", "report": report})
		return
	}
	c.JSON(http.StatusOK, report)
}
