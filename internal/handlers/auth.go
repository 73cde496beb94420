package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"devicegalaxy/internal/middleware"
	"devicegalaxy/internal/models"
	"devicegalaxy/internal/service"
)

type signupRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	DeviceID     string `json:"deviceId"`
	DeviceName   string `json:"deviceName"`
	CaptchaToken string `json:"captchaToken"`
}

type authResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	DeviceID     string       `json:"deviceId"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID               string  `json:"id"`
	Email            string  `json:"email"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	Image            *string `json:"image"`
	Role             string  `json:"role"`
	Status           string  `json:"status"`
	Subdomain        *string `json:"subdomain"`
	TwoFactorEnabled bool    `json:"twoFactorEnabled"`
}

func newUserResponse(user models.User) userResponse {
	return userResponse{
		ID:               user.ID,
		Email:            user.Email,
		Name:             user.Name,
		Description:      user.Description,
		Image:            user.Image,
		Role:             string(user.Role),
		Status:           string(user.Status),
		Subdomain:        user.Subdomain,
		TwoFactorEnabled: user.TwoFactorEnabled,
	}
}

func (h HandlerSet) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		Name:       req.Name,
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.GetHeader("User-Agent"),
		Captcha:    service.CaptchaCheck{Token: req.CaptchaToken, RemoteIP: c.ClientIP()},
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.sendAuthResponse(c, http.StatusCreated, result)
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	TOTPCode   string `json:"totpCode"`
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		TOTPCode:   req.TOTPCode,
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.GetHeader("User-Agent"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.sendAuthResponse(c, http.StatusOK, result)
}

type refreshRequest struct {
	UserID       string `json:"userId" binding:"required"`
	DeviceID     string `json:"deviceId" binding:"required"`
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (h HandlerSet) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.auth.Refresh(c.Request.Context(), service.RefreshInput{
		UserID:       req.UserID,
		DeviceID:     req.DeviceID,
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.sendAuthResponse(c, http.StatusOK, result)
}

func (h HandlerSet) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), currentUserID(c), currentDeviceID(c)); err != nil {
		h.respondError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessCookie, "", -1, "/", "", h.cfg.Security.CookieSecure, true)
	c.Status(http.StatusNoContent)
}

// sendAuthResponse returns the token pair and mirrors the access token
// into a cookie for browser clients.
func (h HandlerSet) sendAuthResponse(c *gin.Context, status int, result service.AuthResult) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		middleware.AccessCookie,
		result.AccessToken,
		int(h.cfg.Security.JWTAccessTTL/time.Second),
		"/",
		"",
		h.cfg.Security.CookieSecure,
		true,
	)

	c.JSON(status, authResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		DeviceID:     result.DeviceID,
		User:         newUserResponse(result.User),
	})
}

func (h HandlerSet) Me(c *gin.Context) {
	user, err := h.account.Me(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": newUserResponse(user),
	})
}

type sessionResponse struct {
	ID         string    `json:"id"`
	DeviceID   string    `json:"deviceId"`
	DeviceName string    `json:"deviceName"`
	IPAddress  string    `json:"ipAddress"`
	UserAgent  string    `json:"userAgent"`
	LastSeenAt time.Time `json:"lastSeenAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Current    bool      `json:"current"`
}

func (h HandlerSet) ListSessions(c *gin.Context) {
	claims, _ := middleware.AccessClaims(c)

	sessions, err := h.auth.Sessions(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, sessionResponse{
			ID:         session.ID,
			DeviceID:   session.DeviceID,
			DeviceName: session.DeviceName,
			IPAddress:  session.IPAddress,
			UserAgent:  session.UserAgent,
			LastSeenAt: session.LastSeenAt,
			ExpiresAt:  session.ExpiresAt,
			Current:    session.ID == claims.SessionID,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": resp,
	})
}

func (h HandlerSet) RevokeSession(c *gin.Context) {
	err := h.auth.RevokeSession(c.Request.Context(), currentUserID(c), currentDeviceID(c), c.Param("deviceId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) EnableTwoFactor(c *gin.Context) {
	setup, err := h.auth.EnableTwoFactor(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"secret": setup.Secret,
		"uri":    setup.URI,
	})
}

type totpRequest struct {
	Code string `json:"code" binding:"required"`
}

func (h HandlerSet) VerifyTwoFactor(c *gin.Context) {
	var req totpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.auth.VerifyTwoFactor(c.Request.Context(), currentUserID(c), req.Code); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type resetRequest struct {
	Email        string `json:"email"`
	CaptchaToken string `json:"captchaToken"`
}

// RequestPasswordReset always answers 202 once the request passes the
// limiter and the captcha, whether or not the address is registered.
func (h HandlerSet) RequestPasswordReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	err := h.auth.RequestPasswordReset(c.Request.Context(), service.PasswordResetRequest{
		Email:     req.Email,
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
		Captcha:   service.CaptchaCheck{Token: req.CaptchaToken, RemoteIP: c.ClientIP()},
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h HandlerSet) FinishPasswordReset(c *gin.Context) {
	var req service.PasswordResetFinish
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.auth.FinishPasswordReset(c.Request.Context(), req); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
