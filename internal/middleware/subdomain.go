package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"devicegalaxy/internal/subdomain"
)

// Subdomains routes storefront hosts. Requests outside the paths a
// storefront serves are redirected to the apex domain, and everything
// else continues with the subdomain stored on the context.
func Subdomains(baseDomain string) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := subdomain.Route(baseDomain, c.Request.Host, c.Request.URL.Path)
		switch decision.Action {
		case subdomain.RedirectToApex, subdomain.RedirectToCanonical:
			location := decision.Location
			if c.Request.URL.RawQuery != "" && decision.Action == subdomain.RedirectToCanonical {
				location += "?" + c.Request.URL.RawQuery
			}
			c.Redirect(http.StatusTemporaryRedirect, scheme(c)+":"+location)
			c.Abort()
			return
		}
		if decision.Subdomain != "" {
			c.Set(subdomainKey, decision.Subdomain)
		}
		c.Next()
	}
}

func scheme(c *gin.Context) string {
	if proto := c.GetHeader("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		return proto
	}
	if c.Request.TLS != nil {
		return "https"
	}
	return "http"
}
