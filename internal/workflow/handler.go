package workflow

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/internal/audit"
	"rentflow/property-portal/property-portal-backend/internal/auth"
	"rentflow/property-portal/property-portal-backend/internal/repository"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// Handler handles HTTP requests for workflow operations
type Handler struct {
	service *Service
	audit   *audit.Service
	logger  *zap.Logger
}

// NewHandler creates a new workflow handler
func NewHandler(service *Service, auditSvc *audit.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, audit: auditSvc, logger: logger}
}

// RegisterTransitionRoute registers the status-change endpoint used by the
// property management screens.
func (h *Handler) RegisterTransitionRoute(router *gin.RouterGroup) {
	router.POST("/transition/:model_type/:instance_id/", h.transitionToStatus)
}

// RegisterRoutes registers workflow API routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/:model_type/:instance_id/events/:event", h.fireEvent)
	router.GET("/:model_type/:instance_id/status", h.getStatus)
	router.GET("/:model_type/:instance_id/history", h.getHistory)

	auditGroup := router.Group("/audit")
	{
		auditGroup.GET("/summary", auth.RequireStaff(), h.getAuditSummary)
		auditGroup.GET("/events", auth.RequireStaff(), h.listAuditEvents)
	}
}

type transitionRequest struct {
	NewStatus string `json:"new_status" form:"new_status"`
	Notes     string `json:"notes" form:"notes"`
}

// bindTransition reads new_status and notes plus every other body field,
// which is passed on as event params.
func bindTransition(c *gin.Context) (transitionRequest, workflows.Params, error) {
	var req transitionRequest
	extra := workflows.Params{}
	if c.ContentType() == binding.MIMEJSON {
		if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
			return req, nil, err
		}
		if err := c.ShouldBindBodyWith(&extra, binding.JSON); err != nil {
			return req, nil, err
		}
	} else {
		if err := c.ShouldBind(&req); err != nil {
			return req, nil, err
		}
		for key, values := range c.Request.PostForm {
			if len(values) > 0 {
				extra[key] = values[0]
			}
		}
	}
	delete(extra, "new_status")
	delete(extra, "notes")
	return req, extra, nil
}

// transitionToStatus handles POST /api/workflows/transition/:model_type/:instance_id/
func (h *Handler) transitionToStatus(c *gin.Context) {
	p, ok := auth.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
		return
	}
	if p.IsTenant() {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Tenants cannot change workflow status"})
		return
	}

	id, ok := h.instanceID(c)
	if !ok {
		return
	}
	req, extra, err := bindTransition(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if req.NewStatus == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "new_status is required"})
		return
	}

	result, err := h.service.TransitionToStatus(c.Request.Context(), c.Param("model_type"), id, workflows.State(req.NewStatus), p.Actor, req.Notes, extra)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": result.Message,
		"data": gin.H{
			"old_status": result.OldState,
			"new_status": result.NewState,
		},
	})
}

// fireEvent handles POST /workflows/api/:model_type/:instance_id/events/:event
func (h *Handler) fireEvent(c *gin.Context) {
	p, ok := auth.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
		return
	}
	id, ok := h.instanceID(c)
	if !ok {
		return
	}
	params := workflows.Params{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
	}

	result, err := h.service.Transition(c.Request.Context(), c.Param("model_type"), id, workflows.Event(c.Param("event")), p.Actor, params)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": result.Message, "data": result})
}

// getStatus handles GET /workflows/api/:model_type/:instance_id/status
func (h *Handler) getStatus(c *gin.Context) {
	p, ok := auth.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	id, ok := h.instanceID(c)
	if !ok {
		return
	}
	status, err := h.service.WorkflowStatus(c.Request.Context(), c.Param("model_type"), id, p.Actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// getHistory handles GET /workflows/api/:model_type/:instance_id/history
func (h *Handler) getHistory(c *gin.Context) {
	id, ok := h.instanceID(c)
	if !ok {
		return
	}
	history, err := h.service.History(c.Request.Context(), c.Param("model_type"), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history, "count": len(history)})
}

// getAuditSummary handles GET /workflows/api/audit/summary
func (h *Handler) getAuditSummary(c *gin.Context) {
	summary, err := h.audit.GetAuditSummary(c.Request.Context(), h.getIntParam(c, "days", 30))
	if err != nil {
		h.logger.Error("Failed to build audit summary", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// listAuditEvents handles GET /workflows/api/audit/events
func (h *Handler) listAuditEvents(c *gin.Context) {
	filter := audit.EventFilter{
		InstanceType: c.Query("instance_type"),
		InstanceID:   c.Query("instance_id"),
		EventType:    c.Query("event_type"),
		Limit:        h.getIntParam(c, "limit", 50),
	}
	if filter.InstanceType != "" {
		if handle, err := h.service.Registry().Resolve(filter.InstanceType); err == nil {
			filter.InstanceType = handle.Type()
		}
	}
	events, err := h.audit.GetEvents(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list audit events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func (h *Handler) instanceID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("instance_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid instance ID"})
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps workflow failures onto HTTP statuses.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := StatusFor(err)
	body := gin.H{"success": false, "error": err.Error()}
	if kind, ok := workflows.KindOf(err); ok {
		body["kind"] = kind
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Workflow request failed", zap.String("path", c.FullPath()), zap.Error(err))
		body["error"] = "internal error"
	}
	c.JSON(status, body)
}

// StatusFor returns the HTTP status for a workflow error.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownModelType):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	}
	kind, ok := workflows.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case workflows.KindPermissionDenied:
		return http.StatusForbidden
	case workflows.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// getIntParam gets an integer query parameter with a default value
func (h *Handler) getIntParam(c *gin.Context, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil && i > 0 {
			return i
		}
	}
	return defaultVal
}
