package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"devicegalaxy/internal/apperr"
	"devicegalaxy/internal/cache"
	"devicegalaxy/internal/captcha"
	"devicegalaxy/internal/config"
	"devicegalaxy/internal/mailer"
	"devicegalaxy/internal/middleware"
	"devicegalaxy/internal/models"
	"devicegalaxy/internal/queue"
	"devicegalaxy/internal/ratelimit"
	"devicegalaxy/internal/repository"
	"devicegalaxy/internal/service"
	"devicegalaxy/internal/storage"
	"devicegalaxy/internal/validation"
)

// Pinger reports whether a backing service answers.
type Pinger func(ctx context.Context) error

type HandlerSet struct {
	log        zerolog.Logger
	cfg        *config.AppConfig
	auth       *service.AuthService
	account    *service.AccountService
	devices    *service.DeviceService
	attributes *service.AttributeService
	tags       *service.TagService
	shares     *service.ShareService
	subdomains *service.SubdomainService
	statuses   *service.StatusService
	admin      *service.AdminService
	resolver   *service.Resolver
	objects    storage.Store
	users      middleware.UserLookup
	sessions   middleware.SessionLookup
	limiter    *ratelimit.KeyedRateLimiter
	checks     map[string]Pinger
}

func NewHandlerSet(
	log zerolog.Logger,
	db *pgxpool.Pool,
	redisClient *redis.Client,
	objects storage.Store,
	jobs queue.Enqueuer,
	limiter *ratelimit.KeyedRateLimiter,
	cfg *config.AppConfig,
) HandlerSet {
	store := repository.NewPostgres(db)
	validator := validation.New()
	gate := service.NewCooldownGate(store.Cooldowns(), cfg.App.Cooldown, nil)

	var verifier captcha.Verifier = captcha.Disabled{}
	if cfg.Captcha.Enabled {
		verifier = captcha.NewTurnstile(cfg.Captcha, log)
	}
	mail := mailer.NewSMTP2GO(cfg.Mail, log)
	resets := cache.NewTokenStore(redisClient, "devicegalaxy:reset:")
	resetLimiter := cache.NewWindowLimiter(redisClient, "devicegalaxy:reset-request:", cfg.RateLimit.PasswordResetWindow)

	return HandlerSet{
		log:        log,
		cfg:        cfg,
		auth:       service.NewAuthService(store, resets, resetLimiter, verifier, mail, validator, cfg, log),
		account:    service.NewAccountService(store, objects, jobs, validator, cfg, log),
		devices:    service.NewDeviceService(store, objects, gate, verifier, validator, cfg, log),
		attributes: service.NewAttributeService(store),
		tags:       service.NewTagService(store, gate, validator, cfg, log),
		shares:     service.NewShareService(store, nil, log),
		subdomains: service.NewSubdomainService(store, validator, nil, log),
		statuses:   service.NewStatusService(store, cfg),
		admin:      service.NewAdminService(store, log),
		resolver:   service.NewResolver(store.Shares()),
		objects:    objects,
		users:      store.Users(),
		sessions:   store.Sessions(),
		limiter:    limiter,
		checks: map[string]Pinger{
			"database": db.Ping,
			"cache":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
	}
}

func (h HandlerSet) Register(engine *gin.Engine) {
	auth := middleware.Auth(h.cfg, h.users, h.sessions)
	optionalAuth := middleware.OptionalAuth(h.cfg, h.users, h.sessions)
	twoFactor := middleware.RequireTwoFactor(h.cfg.Security.RequireTwoFactor)
	public := middleware.RateLimit(h.limiter)

	api := engine.Group("/api")
	api.GET("/healthz", h.Health)

	{
		g := api.Group("/auth")
		g.POST("/signup", h.Signup)
		g.POST("/login", h.Login)
		g.POST("/refresh", h.Refresh)
		g.POST("/password-reset", h.RequestPasswordReset)
		g.POST("/password-reset/finish", h.FinishPasswordReset)

		protected := api.Group("/auth", auth)
		protected.POST("/logout", h.Logout)
		protected.GET("/me", h.Me)
		protected.GET("/sessions", h.ListSessions)
		protected.DELETE("/sessions/:deviceId", h.RevokeSession)
		protected.POST("/2fa/enable", h.EnableTwoFactor)
		protected.POST("/2fa/verify", h.VerifyTwoFactor)
	}

	account := api.Group("/account", auth, twoFactor)
	account.PATCH("", h.UpdateProfile)
	account.POST("/email", h.ChangeEmail)
	account.POST("/password", h.ChangePassword)
	account.POST("/pfp", h.UploadProfilePicture)
	account.DELETE("/pfp", h.RemoveProfilePicture)
	account.DELETE("", h.DeleteAccount)

	api.GET("/dashboard", auth, h.Dashboard)
	api.GET("/attributes", auth, h.ListAttributes)
	api.GET("/attributes/filters", auth, h.AttributeFilters)

	shared := api.Group("", optionalAuth)
	shared.GET("/devices", h.ListDevices)
	shared.GET("/devices/:id", h.GetDevice)
	shared.GET("/tags", h.ListTags)

	writes := api.Group("", auth, twoFactor)
	writes.POST("/devices", h.CreateDevice)
	writes.PUT("/devices/:id", h.UpdateDevice)
	writes.DELETE("/devices/:id", h.DeleteDevice)
	writes.POST("/tags", h.CreateTag)
	writes.PUT("/tags/:id", h.UpdateTag)
	writes.DELETE("/tags/:id", h.DeleteTag)
	writes.GET("/share", h.ListShares)
	writes.POST("/share", h.CreateShare)
	writes.DELETE("/share/:id", h.RevokeShare)
	writes.DELETE("/share", h.RevokeAllShares)
	writes.POST("/subdomain", h.ClaimSubdomain)
	writes.DELETE("/subdomain", h.ReleaseSubdomain)
	writes.PUT("/subdomain/discord", h.SetDiscordToken)

	images := api.Group("/image", public)
	images.GET("/device/:deviceId/:imageId", optionalAuth, h.DeviceImage)
	images.GET("/pfp/:userId", h.ProfilePicture)

	api.GET("/v1/statuses/:statusId", public, h.Status)

	admin := api.Group("/admin", auth, middleware.RequireRoles(models.UserRoleAdmin, models.UserRoleSuperAdmin))
	admin.GET("/users", h.AdminListUsers)
	admin.POST("/users/:id/suspend", h.AdminSuspend)
	admin.POST("/users/:id/unsuspend", h.AdminUnsuspend)
	admin.POST("/users/:id/ban", h.AdminBan)
	admin.POST("/users/:id/unban", h.AdminUnban)

	engine.GET("/.well-known/discord", h.DiscordVerification)
	engine.GET("/", public, h.Storefront)
	engine.NoRoute(public, h.StorefrontDevice)
}

// respondError writes err as a JSON body with the status of its code.
// Internal and upstream failures are logged and their messages hidden.
func (h HandlerSet) respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal("unexpected error", err)
	}

	status := appErr.HTTPStatus()
	if appErr.Code == apperr.CodeInternal || appErr.Code == apperr.CodeUpstreamFailure {
		h.log.Error().Err(err).
			Str("code", string(appErr.Code)).
			Str("path", c.FullPath()).
			Msg("request failed")
		c.AbortWithStatusJSON(status, gin.H{"error": "internal_server_error"})
		return
	}

	if appErr.Code == apperr.CodeCooldown && appErr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(appErr.RetryAfter.Seconds()))))
	}

	body := gin.H{"error": appErr.Message}
	if appErr.Details != nil {
		body["details"] = appErr.Details
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
}

// currentUserID is empty for anonymous requests.
func currentUserID(c *gin.Context) string {
	if user, ok := middleware.CurrentUser(c); ok {
		return user.ID
	}
	return ""
}

func currentDeviceID(c *gin.Context) string {
	if claims, ok := middleware.AccessClaims(c); ok {
		return claims.DeviceID
	}
	return ""
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidInputf("invalid %s", name)
	}
	return id, nil
}

// scope resolves the visibility of a read request from the share query
// parameter or the signed in user.
func (h HandlerSet) scope(c *gin.Context) (service.Scope, error) {
	return h.resolver.Resolve(c.Request.Context(), currentUserID(c), strings.TrimSpace(c.Query("share")))
}

// pagination reads the page and perPage query parameters.
func pagination(c *gin.Context) (limit int, offset int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.DefaultQuery("perPage", "20"))
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if maxPage := math.MaxInt / limit; page > maxPage {
		page = maxPage
	}
	return limit, (page - 1) * limit
}
