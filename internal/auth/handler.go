package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

// Ping endpoint
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "auth service alive!"})
}

// Me describes the authenticated caller.
func (h *Handler) Me(c *gin.Context) {
	p, ok := CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	resp := gin.H{
		"user_id":   p.UserID,
		"username":  p.Username,
		"name":      p.Actor.Name,
		"is_staff":  p.Actor.Staff,
		"superuser": p.Actor.Superuser,
		"role":      p.Actor.Role,
		"groups":    p.Actor.Groups,
	}
	if p.TenantID != nil {
		resp["tenant_id"] = p.TenantID
	}
	c.JSON(http.StatusOK, resp)
}
