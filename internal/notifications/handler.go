package notifications

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/internal/auth"
	"rentflow/property-portal/property-portal-backend/internal/notifications/websocket"
)

// Connector upgrades an authenticated request into a realtime connection.
type Connector interface {
	HandleConnection(w http.ResponseWriter, r *http.Request, userID string) (*websocket.Connection, error)
}

// Handler serves the notification inbox and the realtime channel.
type Handler struct {
	service   *Service
	connector Connector
	logger    *zap.Logger
}

func NewHandler(service *Service, connector Connector, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, connector: connector, logger: logger}
}

// RegisterRoutes registers inbox routes under router.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	notifications := router.Group("/notifications")
	{
		notifications.GET("", h.list)
		notifications.GET("/unread-count", h.unreadCount)
		notifications.POST("/:id/read", h.markRead)
	}
	router.GET("/escalations/due", auth.RequireStaff(), h.dueEscalations)
}

// RegisterWebSocket mounts the realtime endpoint. It must sit behind the
// auth middleware.
func (h *Handler) RegisterWebSocket(router gin.IRoutes, path string) {
	router.GET(path, h.connect)
}

// list handles GET /notifications
func (h *Handler) list(c *gin.Context) {
	p, ok := auth.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	limit := 50
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	rows, err := h.service.ListForUser(c.Request.Context(), p.UserID, c.Query("unread") == "true", limit)
	if err != nil {
		h.logger.Error("Failed to list notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": rows, "count": len(rows)})
}

// unreadCount handles GET /notifications/unread-count
func (h *Handler) unreadCount(c *gin.Context) {
	p, ok := auth.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	n, err := h.service.UnreadCount(c.Request.Context(), p.UserID)
	if err != nil {
		h.logger.Error("Failed to count notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

// markRead handles POST /notifications/:id/read
func (h *Handler) markRead(c *gin.Context) {
	p, ok := auth.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification ID"})
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), id, p.UserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to mark notification read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// dueEscalations handles GET /escalations/due. Nothing polls
// this automatically; staff tooling reads it on demand.
func (h *Handler) dueEscalations(c *gin.Context) {
	rows, err := h.service.DueEscalations(c.Request.Context(), h.service.now())
	if err != nil {
		h.logger.Error("Failed to list due escalations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"escalations": rows, "count": len(rows)})
}

// connect upgrades GET /workflows/ws
func (h *Handler) connect(c *gin.Context) {
	p, ok := auth.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	if h.connector == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime notifications are disabled"})
		return
	}
	conn, err := h.connector.HandleConnection(c.Writer, c.Request, p.UserID.String())
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.String("user", p.Username), zap.Error(err))
		return
	}
	h.logger.Debug("WebSocket connected", zap.String("user", p.Username), zap.String("connection", conn.ID))
}
