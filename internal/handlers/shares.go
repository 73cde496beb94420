package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"devicegalaxy/internal/models"
	"devicegalaxy/internal/service"
)

type shareResponse struct {
	ID        string           `json:"id"`
	Type      models.ShareType `json:"type"`
	DeviceID  *int64           `json:"deviceId"`
	URL       string           `json:"url"`
	CreatedAt time.Time        `json:"createdAt"`
}

func (h HandlerSet) newShareResponse(share models.Share) shareResponse {
	shareType, deviceID, _ := models.EncodeVisibility(share.Visibility)
	return shareResponse{
		ID:        share.ID,
		Type:      shareType,
		DeviceID:  deviceID,
		URL:       h.cfg.App.PublicURL + "/share/" + share.ID,
		CreatedAt: share.CreatedAt,
	}
}

func (h HandlerSet) ListShares(c *gin.Context) {
	shares, err := h.shares.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]shareResponse, 0, len(shares))
	for _, share := range shares {
		resp = append(resp, h.newShareResponse(share))
	}
	c.JSON(http.StatusOK, gin.H{"shares": resp})
}

func (h HandlerSet) CreateShare(c *gin.Context) {
	var req service.CreateShareInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	share, err := h.shares.Create(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := gin.H{"share": h.newShareResponse(share)}
	if single, ok := share.Visibility.(models.SingleDevice); ok {
		resp["statusId"] = service.EncodeStatusID(share.ID, single.DeviceID)
	}
	c.JSON(http.StatusCreated, resp)
}

func (h HandlerSet) RevokeShare(c *gin.Context) {
	if err := h.shares.Revoke(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) RevokeAllShares(c *gin.Context) {
	n, err := h.shares.RevokeAll(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": n})
}
