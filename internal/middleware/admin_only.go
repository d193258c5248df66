// admin_only.go
package middleware

import (
	"net/http"
	"slices"

	"flipbook-fulfillment-service/internal/service"

	"github.com/gin-gonic/gin"
)

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		perms := c.GetStringSlice(CtxUserPermissions)
		if !slices.Contains(perms, service.PermissionAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "admin privileges required"})
			return
		}
		c.Next()
	}
}
