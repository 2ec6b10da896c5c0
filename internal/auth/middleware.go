package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/internal/audit"
)

const principalKey = "principal"

// ExtractToken extracts the JWT token from an Authorization header
func ExtractToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(authHeader)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1], nil
	}
	return "", errors.New("invalid authorization header format")
}

// Middleware authenticates the bearer token and stores the Principal on the
// gin context. The client IP is attached to the request context for audit
// rows. Websocket upgrades may pass the token as the "token" query value.
func Middleware(svc *Service, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := ExtractToken(c.GetHeader("Authorization"))
		if err != nil && c.Query("token") != "" {
			token, err = c.Query("token"), nil
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		p, err := svc.Authenticate(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrInactiveUser) {
				logger.Error("Authentication failed", zap.Error(err))
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		c.Set(principalKey, p)
		c.Request = c.Request.WithContext(audit.WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}

// RequireStaff rejects callers without staff or superuser rights.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok || !p.IsStaff() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "staff access required"})
			return
		}
		c.Next()
	}
}

// CurrentPrincipal returns the caller set by Middleware.
func CurrentPrincipal(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok
}

// SetPrincipal stores p on the context; used by tests and internal callers.
func SetPrincipal(c *gin.Context, p *Principal) {
	c.Set(principalKey, p)
}
