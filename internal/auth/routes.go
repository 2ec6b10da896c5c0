package auth

import "github.com/gin-gonic/gin"

// RegisterRoutes registers Auth routes
func RegisterRoutes(r *gin.Engine, handler *Handler, authenticate gin.HandlerFunc) {
	authGroup := r.Group("/auth")
	{
		authGroup.GET("/ping", handler.Ping)
		authGroup.GET("/me", authenticate, handler.Me)
	}
}
