package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"devicegalaxy/internal/apperr"
	"devicegalaxy/internal/storage"
)

const (
	deviceImageCache = "private, max-age=31536000, immutable"
	pfpCache         = "public, max-age=31536000"
)

func (h HandlerSet) DeviceImage(c *gin.Context) {
	deviceID, err := pathID(c, "deviceId")
	if err != nil {
		h.respondError(c, err)
		return
	}
	scope, err := h.scope(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	imageID := strings.TrimSuffix(c.Param("imageId"), ".jpg")
	key, err := h.devices.ImageKey(c.Request.Context(), scope, deviceID, imageID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.streamObject(c, key, deviceImageCache)
}

func (h HandlerSet) ProfilePicture(c *gin.Context) {
	key, err := h.account.ProfilePictureKey(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.streamObject(c, key, pfpCache)
}

func (h HandlerSet) streamObject(c *gin.Context, key string, cacheControl string) {
	body, info, err := h.objects.Get(c.Request.Context(), key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		h.respondError(c, apperr.NotFound("image not found"))
		return
	}
	if err != nil {
		h.respondError(c, apperr.Internal("read image", err))
		return
	}
	defer body.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	c.DataFromReader(http.StatusOK, info.Size, contentType, body, map[string]string{
		"Cache-Control": cacheControl,
	})
}
