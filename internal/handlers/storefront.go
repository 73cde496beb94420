package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"devicegalaxy/internal/middleware"
)

func notFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_found"})
}

// DiscordVerification publishes the Discord domain verification token of
// the subdomain the request was made on.
func (h HandlerSet) DiscordVerification(c *gin.Context) {
	name := middleware.Subdomain(c)
	if name == "" {
		c.Redirect(http.StatusTemporaryRedirect, "/")
		return
	}

	token, err := h.subdomains.DiscordToken(c.Request.Context(), name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.String(http.StatusOK, token)
}

func (h HandlerSet) Storefront(c *gin.Context) {
	name := middleware.Subdomain(c)
	if name == "" {
		notFound(c)
		return
	}

	profile, scope, err := h.subdomains.Storefront(c.Request.Context(), name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	query, err := deviceQuery(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	page, err := h.devices.List(c.Request.Context(), scope, query)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile": gin.H{
			"name":        profile.Name,
			"description": profile.Description,
			"image":       profile.Image,
			"subdomain":   profile.Subdomain,
		},
		"devices": newDeviceList(page.Devices, scope.ShareID),
		"total":   page.Total,
	})
}

// StorefrontDevice serves GET /{deviceId} on a storefront host. It is the
// router's fallback, so every other unmatched request ends here as a 404.
func (h HandlerSet) StorefrontDevice(c *gin.Context) {
	name := middleware.Subdomain(c)
	if name == "" || c.Request.Method != http.MethodGet {
		notFound(c)
		return
	}

	segment := strings.Trim(c.Request.URL.Path, "/")
	deviceID, err := strconv.ParseInt(segment, 10, 64)
	if err != nil || deviceID <= 0 {
		notFound(c)
		return
	}

	_, scope, err := h.subdomains.Storefront(c.Request.Context(), name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.getDevice(c, scope, deviceID)
}
