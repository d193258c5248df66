package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health reports 503 with the failing dependency errors when any check fails.
func Health(checks map[string]func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		failing := gin.H{}
		for name, check := range checks {
			if err := check(); err != nil {
				failing[name] = err.Error()
			}
		}
		if len(failing) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "failing": failing})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
