package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"devicegalaxy/internal/config"
	"devicegalaxy/internal/models"
	"devicegalaxy/internal/security"
)

type UserLookup interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

type SessionLookup interface {
	GetByID(ctx context.Context, id string) (models.Session, error)
	Touch(ctx context.Context, sessionID string, ip string, userAgent string) error
}

// AccessCookie carries the access token for browser clients.
const AccessCookie = "access_token"

type authFailure struct {
	status int
	code   string
}

// Auth requires a valid access token from the Authorization header or the
// access_token cookie. Banned users are rejected; suspended users pass and
// are stopped by the services on writes.
func Auth(cfg *config.AppConfig, users UserLookup, sessions SessionLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		if fail := authenticate(c, cfg, users, sessions); fail != nil {
			c.AbortWithStatusJSON(fail.status, gin.H{"error": fail.code})
			return
		}
		c.Next()
	}
}

// OptionalAuth sets the current user when a valid token is present and
// otherwise lets the request through anonymously. Share links rely on it.
func OptionalAuth(cfg *config.AppConfig, users UserLookup, sessions SessionLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		if bearerToken(c) != "" {
			_ = authenticate(c, cfg, users, sessions)
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := c.Cookie(AccessCookie); err == nil {
		return cookie
	}
	return ""
}

func authenticate(c *gin.Context, cfg *config.AppConfig, users UserLookup, sessions SessionLookup) *authFailure {
	tokenStr := bearerToken(c)
	if tokenStr == "" {
		return &authFailure{http.StatusUnauthorized, "missing_token"}
	}

	claims, err := security.ParseAccessToken(tokenStr, cfg.Security.JWTAccessSecret)
	if err != nil {
		return &authFailure{http.StatusUnauthorized, "invalid_token"}
	}

	session, err := sessions.GetByID(c.Request.Context(), claims.SessionID)
	if err != nil {
		return &authFailure{http.StatusUnauthorized, "session_not_found"}
	}
	if session.UserID != claims.UserID || session.DeviceID != claims.DeviceID {
		return &authFailure{http.StatusUnauthorized, "session_mismatch"}
	}

	user, err := users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		return &authFailure{http.StatusUnauthorized, "user_not_found"}
	}
	if user.Banned {
		return &authFailure{http.StatusForbidden, "user_banned"}
	}

	_ = sessions.Touch(c.Request.Context(), session.ID, c.ClientIP(), c.GetHeader("User-Agent"))

	c.Set(accessTokenKey, tokenStr)
	c.Set(accessClaimsKey, *claims)
	c.Set(currentUserKey, user)
	return nil
}

// mustUser aborts with 401 when no user was authenticated.
func mustUser(c *gin.Context) (models.User, bool) {
	user, ok := CurrentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return models.User{}, false
	}
	return user, true
}
