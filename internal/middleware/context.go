package middleware

import (
	"github.com/gin-gonic/gin"

	"devicegalaxy/internal/models"
	"devicegalaxy/internal/security"
)

const (
	currentUserKey  = "current_user"
	accessClaimsKey = "access_claims"
	accessTokenKey  = "access_token"
	subdomainKey    = "subdomain"
)

// CurrentUser returns the user set by Auth or OptionalAuth.
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

func AccessClaims(c *gin.Context) (security.AccessClaims, bool) {
	v, ok := c.Get(accessClaimsKey)
	if !ok {
		return security.AccessClaims{}, false
	}
	claims, ok := v.(security.AccessClaims)
	return claims, ok
}

// Subdomain returns the storefront subdomain of the request host, if any.
func Subdomain(c *gin.Context) string {
	return c.GetString(subdomainKey)
}
