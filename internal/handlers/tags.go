package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"devicegalaxy/internal/models"
	"devicegalaxy/internal/service"
)

type tagResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Color     *string   `json:"color"`
	TextColor *string   `json:"textColor"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newTagResponse(tag models.Tag) tagResponse {
	return tagResponse{
		ID:        tag.ID,
		Name:      tag.Name,
		Color:     tag.Color,
		TextColor: tag.TextColor,
		CreatedAt: tag.CreatedAt,
		UpdatedAt: tag.UpdatedAt,
	}
}

func (h HandlerSet) ListTags(c *gin.Context) {
	scope, err := h.scope(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	tags, err := h.tags.List(c.Request.Context(), scope)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]tagResponse, 0, len(tags))
	for _, tag := range tags {
		resp = append(resp, newTagResponse(tag))
	}
	c.JSON(http.StatusOK, gin.H{"tags": resp})
}

func (h HandlerSet) CreateTag(c *gin.Context) {
	var req service.TagInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	tag, err := h.tags.Create(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tag": newTagResponse(tag)})
}

func (h HandlerSet) UpdateTag(c *gin.Context) {
	tagID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var req service.TagInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	tag, err := h.tags.Update(c.Request.Context(), currentUserID(c), tagID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": newTagResponse(tag)})
}

func (h HandlerSet) DeleteTag(c *gin.Context) {
	tagID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.tags.Delete(c.Request.Context(), currentUserID(c), tagID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
