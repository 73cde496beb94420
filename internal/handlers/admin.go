package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"devicegalaxy/internal/middleware"
	"devicegalaxy/internal/models"
)

type adminUserResponse struct {
	userResponse
	Banned        bool      `json:"banned"`
	BanReason     *string   `json:"banReason"`
	SuspendReason *string   `json:"suspendReason"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (h HandlerSet) AdminListUsers(c *gin.Context) {
	limit, offset := pagination(c)

	page, err := h.admin.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]adminUserResponse, 0, len(page.Users))
	for _, user := range page.Users {
		items = append(items, adminUserResponse{
			userResponse:  newUserResponse(user),
			Banned:        user.Banned,
			BanReason:     user.BanReason,
			SuspendReason: user.SuspendReason,
			CreatedAt:     user.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": page.Total,
	})
}

type moderationRequest struct {
	Reason string `json:"reason"`
}

type moderationFunc func(ctx context.Context, actor models.User, targetID string, reason string) error

// moderate binds the optional reason and applies action to the user named
// in the path.
func (h HandlerSet) moderate(c *gin.Context, action moderationFunc) {
	var req moderationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	actor, _ := middleware.CurrentUser(c)
	if err := action(c.Request.Context(), actor, c.Param("id"), req.Reason); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) AdminSuspend(c *gin.Context) {
	h.moderate(c, h.admin.Suspend)
}

func (h HandlerSet) AdminUnsuspend(c *gin.Context) {
	h.moderate(c, func(ctx context.Context, actor models.User, id string, _ string) error {
		return h.admin.Unsuspend(ctx, actor, id)
	})
}

func (h HandlerSet) AdminBan(c *gin.Context) {
	h.moderate(c, h.admin.Ban)
}

func (h HandlerSet) AdminUnban(c *gin.Context) {
	h.moderate(c, func(ctx context.Context, actor models.User, id string, _ string) error {
		return h.admin.Unban(ctx, actor, id)
	})
}
