package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the auth and current-account routes.
// Account creation is mounted with the users record routes.
func RegisterRoutes(g *gin.RouterGroup, h *UserHandler, authMiddleware gin.HandlerFunc) {
	// Public Routes
	authGroup := g.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/logout", authMiddleware, h.Logout)
	}

	// Authenticated Routes
	me := g.Group("/me")
	me.Use(authMiddleware)
	{
		me.GET("", h.Me)
		me.PUT("/password", h.ChangePassword)
	}
}
