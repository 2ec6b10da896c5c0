package triggers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/internal/auth"
)

// Handler exposes trigger rule management to staff.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers trigger routes. Every route requires staff.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	triggers := router.Group("/triggers", auth.RequireStaff())
	{
		triggers.GET("", h.listTriggers)
		triggers.POST("", h.createTrigger)
		triggers.GET("/:id", h.getTrigger)
		triggers.PUT("/:id", h.updateTrigger)
		triggers.DELETE("/:id", h.deactivateTrigger)
	}
}

// listTriggers handles GET /triggers
func (h *Handler) listTriggers(c *gin.Context) {
	filter := Filter{
		InstanceType: c.Query("instance_type"),
		ActiveOnly:   c.Query("active") == "true",
	}
	rules, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"triggers": rules, "count": len(rules)})
}

// createTrigger handles POST /triggers
func (h *Handler) createTrigger(c *gin.Context) {
	var rule WorkflowTrigger
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule.ID = uuid.Nil

	var createdBy *uuid.UUID
	if p, ok := auth.CurrentPrincipal(c); ok {
		id := p.UserID
		createdBy = &id
	}
	created, err := h.service.Create(c.Request.Context(), &rule, createdBy)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// getTrigger handles GET /triggers/:id
func (h *Handler) getTrigger(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	rule, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// updateTrigger handles PUT /triggers/:id
func (h *Handler) updateTrigger(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var rule WorkflowTrigger
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule.ID = id
	updated, err := h.service.Update(c.Request.Context(), &rule)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// deactivateTrigger handles DELETE /triggers/:id
func (h *Handler) deactivateTrigger(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	if err := h.service.Deactivate(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trigger ID"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidTrigger):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Trigger request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
