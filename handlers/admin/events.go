package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/blackt666/immoxx--sub004/handlers/auth"
	"github.com/blackt666/immoxx--sub004/security"
)

// SecurityEvents lists events. source=memory reads the in-process window,
// otherwise the persisted history is used.
func (h *Handler) SecurityEvents(c *gin.Context) {
	q := security.Query{
		Limit: queryInt(c, "limit", 100, 1000),
		Type:  c.Query("type"),
	}
	if raw := c.Query("severity"); raw != "" {
		sev, err := security.ParseSeverity(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid severity"})
			return
		}
		q.MinSeverity = sev
	}
	since, err := parseSince(c.Query("since"), time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid since parameter"})
		return
	}
	q.Since = since

	var events []security.Event
	if c.Query("source") == "memory" {
		events = h.Events.Recent(q)
	} else {
		events, err = h.Events.History(c.Request.Context(), q)
		if err != nil {
			h.Logger.Error("Failed to load security events", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load security events"})
			return
		}
	}
	if events == nil {
		events = []security.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *Handler) SecuritySummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.Events.Summary())
}

// ReportEvent lets the application behind the gateway push its own events
// into the same pipeline.
func (h *Handler) ReportEvent(c *gin.Context) {
	var input struct {
		Type      string                 `json:"type" binding:"required,max=64"`
		Severity  security.Severity      `json:"severity"`
		Message   string                 `json:"message" binding:"required"`
		IP        string                 `json:"ip"`
		UserAgent string                 `json:"user_agent"`
		Path      string                 `json:"path"`
		Details   map[string]interface{} `json:"details"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event: type (up to 64 characters) and message are required, severity must be low, medium, high or critical"})
		return
	}

	details := input.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	if admin, ok := auth.CurrentAdmin(c); ok {
		details["reported_by"] = admin.Email
	}

	e := h.Events.Emit(c.Request.Context(), security.Event{
		Type:      input.Type,
		Severity:  input.Severity,
		Message:   input.Message,
		IP:        input.IP,
		UserAgent: input.UserAgent,
		Path:      input.Path,
		Details:   details,
	})
	c.JSON(http.StatusCreated, gin.H{"event": e})
}
