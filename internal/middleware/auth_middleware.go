// auth_middleware.go
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"flipbook-fulfillment-service/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	CtxUserID          = "userID"
	CtxUserName        = "userName"
	CtxUserPermissions = "userPermissions"
)

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*service.AuthUser, error)
}

// AuthMiddleware validates the bearer token and stores the user in the gin context.
func AuthMiddleware(auth TokenValidator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing authorization header"})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		user, err := auth.ValidateToken(c.Request.Context(), token)
		if err != nil {
			logger.Warn("token rejected", "path", c.FullPath(), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid or expired token"})
			return
		}

		c.Set(CtxUserID, user.ID)
		c.Set(CtxUserName, user.Name)
		c.Set(CtxUserPermissions, user.Permissions)
		c.Next()
	}
}
