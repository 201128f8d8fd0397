// Package auth signs gateway administrators in and guards the admin API.
package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/blackt666/immoxx--sub004/models"
	"github.com/blackt666/immoxx--sub004/security"
)

const adminContextKey = "admin"

type Handler struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
	events security.Emitter
	logger *zap.Logger
}

func NewHandler(db *gorm.DB, jwtSecret string, ttl time.Duration, events security.Emitter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		db:     db,
		secret: []byte(jwtSecret),
		ttl:    ttl,
		events: events,
		logger: logger.Named("auth"),
	}
}

// CurrentAdmin returns the admin AuthMiddleware stored on the context.
func CurrentAdmin(c *gin.Context) (models.AdminUser, bool) {
	v, ok := c.Get(adminContextKey)
	if !ok {
		return models.AdminUser{}, false
	}
	admin, ok := v.(models.AdminUser)
	return admin, ok
}

func (h *Handler) Me(c *gin.Context) {
	admin, ok := CurrentAdmin(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"admin": admin})
}

func (h *Handler) emit(c *gin.Context, eventType string, severity security.Severity, message string, details map[string]interface{}) {
	if h.events == nil {
		return
	}
	e := security.RequestEvent(c.Request, c.ClientIP(), eventType, severity, message)
	e.Details = details
	h.events.Emit(c.Request.Context(), e)
}
