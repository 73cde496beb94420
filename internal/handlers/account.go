package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"devicegalaxy/internal/apperr"
	"devicegalaxy/internal/middleware"
	"devicegalaxy/internal/service"
)

func (h HandlerSet) UpdateProfile(c *gin.Context) {
	var req service.ProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.account.UpdateProfile(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

func (h HandlerSet) ChangeEmail(c *gin.Context) {
	var req service.EmailChangeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.account.ChangeEmail(c.Request.Context(), currentUserID(c), req); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) ChangePassword(c *gin.Context) {
	var req service.PasswordChangeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.account.ChangePassword(c.Request.Context(), currentUserID(c), currentDeviceID(c), req); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadProfilePicture expects a multipart form with a single "file" part.
func (h HandlerSet) UploadProfilePicture(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, service.MaxProfileUploadBytes+(1<<20))

	header, err := c.FormFile("file")
	if err != nil {
		h.respondError(c, apperr.InvalidInput("file is required"))
		return
	}
	upload, err := service.ReadUpload(header, service.MaxProfileUploadBytes)
	if err != nil {
		h.respondError(c, err)
		return
	}

	user, err := h.account.SetProfilePicture(c.Request.Context(), currentUserID(c), upload)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

func (h HandlerSet) RemoveProfilePicture(c *gin.Context) {
	if err := h.account.RemoveProfilePicture(c.Request.Context(), currentUserID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) DeleteAccount(c *gin.Context) {
	var req service.DeleteAccountInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.account.Delete(c.Request.Context(), currentUserID(c), req); err != nil {
		h.respondError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessCookie, "", -1, "/", "", h.cfg.Security.CookieSecure, true)
	c.Status(http.StatusNoContent)
}
