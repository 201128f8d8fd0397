package auth

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/blackt666/immoxx--sub004/models"
	"github.com/blackt666/immoxx--sub004/security"
	"github.com/blackt666/immoxx--sub004/utils"
)

var compareHash = bcrypt.CompareHashAndPassword

// dummyHash is compared against on unknown emails so both failures take a
// bcrypt round.
var dummyHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("not-an-admin-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return hash
})

func (h *Handler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input data. Please provide a valid email and password."})
		return
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))

	var admin models.AdminUser
	if err := h.db.Where("email = ?", email).First(&admin).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.logger.Error("Failed to load admin", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login is temporarily unavailable."})
			return
		}
		_ = compareHash(dummyHash(), []byte(input.Password))
		h.loginFailed(c, email, "unknown email")
		return
	}

	// Check password
	if err := compareHash([]byte(admin.Password), []byte(input.Password)); err != nil {
		h.loginFailed(c, email, "wrong password")
		return
	}

	if !admin.Active {
		h.emit(c, security.EventAdminLoginFailed, security.SeverityMedium, "Disabled admin attempted to sign in", map[string]interface{}{"email": email})
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is disabled."})
		return
	}

	token, err := utils.GenerateAccessToken(h.secret, admin.ID, h.ttl)
	if err != nil {
		h.logger.Error("Could not sign token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not generate token"})
		return
	}

	now := time.Now()
	if err := h.db.Model(&admin).Update("last_login_at", now).Error; err != nil {
		h.logger.Warn("Failed to record last login", zap.Uint("admin_id", admin.ID), zap.Error(err))
	}
	admin.LastLoginAt = &now

	h.emit(c, security.EventAdminLogin, security.SeverityLow, "Admin signed in", map[string]interface{}{"admin_id": admin.ID})

	c.JSON(http.StatusOK, gin.H{
		"message":    "Login successful.",
		"token":      token,
		"expires_in": int(h.ttl.Seconds()),
		"admin":      admin,
	})
}

func (h *Handler) loginFailed(c *gin.Context, email, reason string) {
	h.emit(c, security.EventAdminLoginFailed, security.SeverityMedium, "Admin login failed", map[string]interface{}{
		"email":  email,
		"reason": reason,
	})
	c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password."})
}
