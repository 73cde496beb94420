package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devicegalaxy/internal/config"
	"devicegalaxy/internal/models"
	"devicegalaxy/internal/ratelimit"
	"devicegalaxy/internal/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubUsers map[string]models.User

func (s stubUsers) GetByID(ctx context.Context, id string) (models.User, error) {
	u, ok := s[id]
	if !ok {
		return models.User{}, errors.New("not found")
	}
	return u, nil
}

type stubSessions map[string]models.Session

func (s stubSessions) GetByID(ctx context.Context, id string) (models.Session, error) {
	session, ok := s[id]
	if !ok {
		return models.Session{}, errors.New("not found")
	}
	return session, nil
}

func (s stubSessions) Touch(ctx context.Context, sessionID string, ip string, userAgent string) error {
	return nil
}

func authFixture(t *testing.T) (*config.AppConfig, stubUsers, stubSessions, string) {
	t.Helper()
	cfg := &config.AppConfig{Security: config.SecurityConfig{JWTAccessSecret: "secret"}}
	users := stubUsers{
		"u1": {ID: "u1", Role: models.UserRoleUser, Status: models.UserStatusActive},
	}
	sessions := stubSessions{
		"s1": {ID: "s1", UserID: "u1", DeviceID: "d1"},
	}
	token, err := security.GenerateAccessToken("secret", "u1", "s1", "d1", "user", time.Minute)
	require.NoError(t, err)
	return cfg, users, sessions, token
}

func TestAuth(t *testing.T) {
	cfg, users, sessions, token := authFixture(t)

	router := gin.New()
	router.GET("/me", Auth(cfg, users, sessions), func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.String(http.StatusOK, user.ID)
	})

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		banned bool
		status int
		body   string
	}{
		{name: "bearer", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, status: http.StatusOK, body: "u1"},
		{name: "cookie", setup: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AccessCookie, Value: token}) }, status: http.StatusOK, body: "u1"},
		{name: "missing", setup: func(r *http.Request) {}, status: http.StatusUnauthorized},
		{name: "garbage", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, status: http.StatusUnauthorized},
		{name: "banned", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, banned: true, status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := users["u1"]
			user.Banned = tt.banned
			users["u1"] = user

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestOptionalAuthPassesAnonymous(t *testing.T) {
	cfg, users, sessions, _ := authFixture(t)

	router := gin.New()
	router.GET("/open", OptionalAuth(cfg, users, sessions), func(c *gin.Context) {
		_, ok := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/open", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":false}`, rec.Body.String())
}

func TestRequireTwoFactor(t *testing.T) {
	cfg, users, sessions, token := authFixture(t)

	router := gin.New()
	router.POST("/write", Auth(cfg, users, sessions), RequireTwoFactor(true), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/write", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := send()
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"two_factor_required"}`, rec.Body.String())

	user := users["u1"]
	user.TwoFactorEnabled = true
	users["u1"] = user
	assert.Equal(t, http.StatusNoContent, send().Code)
}

func TestRequireRoles(t *testing.T) {
	cfg, users, sessions, token := authFixture(t)

	router := gin.New()
	router.GET("/admin", Auth(cfg, users, sessions), RequireRoles(models.UserRoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSubdomains(t *testing.T) {
	router := gin.New()
	router.Use(Subdomains("devicegalaxy.me"))
	router.NoRoute(func(c *gin.Context) {
		c.String(http.StatusOK, "sub=%s", Subdomain(c))
	})

	tests := []struct {
		name     string
		host     string
		path     string
		status   int
		location string
		body     string
	}{
		{name: "apex", host: "devicegalaxy.me", path: "/dashboard", status: http.StatusOK, body: "sub="},
		{name: "storefront root", host: "alice.devicegalaxy.me", path: "/", status: http.StatusOK, body: "sub=alice"},
		{name: "storefront device", host: "alice.devicegalaxy.me:8080", path: "/12", status: http.StatusOK, body: "sub=alice"},
		{name: "www", host: "www.devicegalaxy.me", path: "/login", status: http.StatusTemporaryRedirect, location: "http://devicegalaxy.me/"},
		{name: "canonical", host: "alice.devicegalaxy.me", path: "/dashboard?x=1", status: http.StatusTemporaryRedirect, location: "http://devicegalaxy.me/dashboard?x=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Host = tt.host
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.location != "" {
				assert.Equal(t, tt.location, rec.Header().Get("Location"))
			}
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	router := gin.New()
	router.GET("/x", RateLimit(ratelimit.New(0.001, 1)), func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
}

func TestRequestIDEchoes(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(requestIDHeader, "abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(requestIDHeader))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Len(t, rec.Header().Get(requestIDHeader), 36)
}
