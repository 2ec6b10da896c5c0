package reports

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/internal/auth"
	"rentflow/property-portal/property-portal-backend/internal/reports/export"
)

// Handler handles HTTP requests for report exports
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new reports handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers reporting routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/audit/export", auth.RequireStaff(), h.exportAudit)
}

// exportAudit handles GET /workflows/api/audit/export
func (h *Handler) exportAudit(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days <= 0 || days > maxExportDays {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days"})
		return
	}

	out, err := h.service.ExportAudit(c.Request.Context(), ExportRequest{
		Format:       format,
		Days:         days,
		InstanceType: c.Query("instance_type"),
	})
	if err != nil {
		h.logger.Error("Failed to export audit log", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if c.Query("upload") == "true" {
		if err := h.service.Upload(c.Request.Context(), out); err != nil {
			if errors.Is(err, ErrUploadDisabled) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
				return
			}
			h.logger.Error("Failed to upload audit export", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "upload failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"filename": out.Filename,
			"location": out.Location,
			"rows":     out.Rows,
		})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+out.Filename+`"`)
	c.Data(http.StatusOK, out.ContentType, out.Body)
}
