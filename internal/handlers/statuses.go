package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Status renders a shared device as a Mastodon status for link embeds.
func (h HandlerSet) Status(c *gin.Context) {
	status, err := h.statuses.Status(c.Request.Context(), c.Param("statusId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
