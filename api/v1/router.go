// Package v1 mounts the HTTP API.
package v1

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/internal/app"
	"rentflow/property-portal/property-portal-backend/internal/auth"
	"rentflow/property-portal/property-portal-backend/internal/notifications"
	"rentflow/property-portal/property-portal-backend/internal/reports"
	"rentflow/property-portal/property-portal-backend/internal/triggers"
	"rentflow/property-portal/property-portal-backend/internal/workflow"
)

// NewRouter builds the gin engine. Everything except /health and /metrics
// requires a bearer token.
func NewRouter(a *app.App) (*gin.Engine, error) {
	if a.Auth == nil {
		return nil, fmt.Errorf("security.jwt_secret must be set to serve the API")
	}
	logger := a.Logger

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), a.Metrics.Middleware(), cors(a.Config.Server.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})
	router.GET("/metrics", gin.WrapH(a.Metrics.Handler()))

	authenticate := auth.Middleware(a.Auth, logger.Named("auth"))
	auth.RegisterRoutes(router, auth.NewHandler(a.Auth), authenticate)

	workflowHandler := workflow.NewHandler(a.Workflow, a.Audit, logger.Named("workflow"))
	workflowHandler.RegisterTransitionRoute(router.Group("/api/workflows", authenticate))

	api := router.Group("/workflows/api", authenticate)
	workflowHandler.RegisterRoutes(api)
	reports.NewHandler(a.Reports, logger.Named("reports")).RegisterRoutes(api)
	triggers.NewHandler(a.Triggers, logger.Named("triggers")).RegisterRoutes(api)

	var connector notifications.Connector
	if a.Sockets != nil {
		connector = a.Sockets
	}
	notificationHandler := notifications.NewHandler(a.Notifier, connector, logger.Named("notifications"))
	notificationHandler.RegisterRoutes(api)
	notificationHandler.RegisterWebSocket(router.Group("/workflows", authenticate), "/ws")

	return router, nil
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func cors(allowed []string) gin.HandlerFunc {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case len(set) == 0:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case set[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Authorization, Accept, Origin, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
