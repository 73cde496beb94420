package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"devicegalaxy/internal/models"
)

func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	roleSet := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		user, ok := mustUser(c)
		if !ok {
			return
		}
		if _, ok := roleSet[user.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// RequireTwoFactor blocks dashboard mutations for users without two factor
// authentication when enforcement is on.
func RequireTwoFactor(enforce bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enforce {
			c.Next()
			return
		}
		user, ok := mustUser(c)
		if !ok {
			return
		}
		if !user.TwoFactorEnabled {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "two_factor_required"})
			return
		}
		c.Next()
	}
}
