package auth

import "github.com/gin-gonic/gin"

// RegisterAuthRoutes mounts login and the current-admin lookup.
func RegisterAuthRoutes(r *gin.RouterGroup, h *Handler) {
	r.POST("/auth/login", h.Login)
	r.GET("/auth/me", h.AuthMiddleware(), h.Me)
}
