// Package reports accepts browser-originated security reports.
package reports

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blackt666/immoxx--sub004/security"
)

const maxReportBytes = 64 << 10

type Handler struct {
	Events security.Emitter
}

// CSPReport accepts both the legacy report-uri body and Reporting API batches.
func (h *Handler) CSPReport(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxReportBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read report"})
		return
	}
	if len(body) > maxReportBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Report too large"})
		return
	}

	events, err := security.ParseCSPReport(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid CSP report"})
		return
	}

	for _, e := range events {
		e.IP = c.ClientIP()
		e.UserAgent = c.Request.UserAgent()
		e.Path = c.Request.URL.Path
		h.Events.Emit(c.Request.Context(), e)
	}
	c.Status(http.StatusNoContent)
}

func RegisterReportRoutes(r *gin.RouterGroup, h *Handler) {
	r.POST("/security/csp-report", h.CSPReport)
}
