package middleware

import (
	"log/slog"
	"net/http"

	"github.com/eduexamportal/mailroom/internal/access"
	"github.com/eduexamportal/mailroom/internal/models"
	"github.com/eduexamportal/mailroom/internal/rbac"
	"github.com/gin-gonic/gin"
)

// RequirePermission ensures the user's role may perform act on obj.
// It only gates the route; which record a caller may touch is decided later.
func RequirePermission(obj, act string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, exists := c.Get("user")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		u := user.(*models.User)
		allowed, err := rbac.Can(access.ParseRole(u.Role), obj, act)
		if err != nil {
			slog.Error("Permission check failed", "user_id", u.ID, "object", obj, "action", act, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			c.Abort()
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			c.Abort()
			return
		}

		c.Next()
	}
}
