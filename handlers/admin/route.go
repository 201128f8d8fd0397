package admin

import "github.com/gin-gonic/gin"

// RegisterAdminRoutes expects r to be guarded by the auth middleware already.
func RegisterAdminRoutes(r *gin.RouterGroup, h *Handler) {
	r.GET("/performance", h.Performance)
	r.GET("/performance/recent", h.RecentRequests)
	r.GET("/security/events", h.SecurityEvents)
	r.POST("/security/events", h.ReportEvent)
	r.GET("/security/summary", h.SecuritySummary)
	r.GET("/rate-limits", h.RateLimits)
	r.GET("/cache", h.CacheStats)
	r.DELETE("/cache", h.FlushCache)
	r.GET("/calendar/connections", h.CalendarConnections)
	r.POST("/calendar/maintenance", h.RunCalendarMaintenance)
}
