package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/blackt666/immoxx--sub004/models"
	"github.com/blackt666/immoxx--sub004/security"
	"github.com/blackt666/immoxx--sub004/utils"
)

func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is missing"})
			return
		}

		adminID, err := utils.ExtractAdminIDFromToken(h.secret, authHeader)
		if err != nil {
			if errors.Is(err, utils.ErrInvalidAuthHeader) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
				return
			}
			h.emit(c, security.EventInvalidToken, security.SeverityMedium, "Rejected admin token", map[string]interface{}{"reason": err.Error()})
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		// Fetch the admin from the database
		var admin models.AdminUser
		if err := h.db.First(&admin, adminID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Admin not found"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Could not verify admin"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Account is disabled."})
			return
		}

		c.Set(adminContextKey, admin)
		c.Next()
	}
}
