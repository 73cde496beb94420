package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type subdomainRequest struct {
	Subdomain string `json:"subdomain"`
}

func (h HandlerSet) ClaimSubdomain(c *gin.Context) {
	var req subdomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.subdomains.Claim(c.Request.Context(), currentUserID(c), req.Subdomain)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

type releaseRequest struct {
	Confirm string `json:"confirm"`
}

// ReleaseSubdomain requires the current subdomain to be typed back.
func (h HandlerSet) ReleaseSubdomain(c *gin.Context) {
	var req releaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.subdomains.Release(c.Request.Context(), currentUserID(c), req.Confirm); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type discordTokenRequest struct {
	// Token clears the stored token when null.
	Token *string `json:"token"`
}

func (h HandlerSet) SetDiscordToken(c *gin.Context) {
	var req discordTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.subdomains.SetDiscordToken(c.Request.Context(), currentUserID(c), req.Token); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
