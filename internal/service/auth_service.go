package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"devicegalaxy/internal/apperr"
	"devicegalaxy/internal/cache"
	"devicegalaxy/internal/captcha"
	"devicegalaxy/internal/config"
	"devicegalaxy/internal/ids"
	"devicegalaxy/internal/mailer"
	"devicegalaxy/internal/models"
	"devicegalaxy/internal/repository"
	"devicegalaxy/internal/security"
	"devicegalaxy/internal/validation"
)

const passwordResetTTL = time.Hour

var (
	ErrInvalidCredentials = apperr.Unauthorized("invalid credentials")
	ErrTwoFactorRequired  = apperr.Unauthorized("two factor code required")
)

// ResetTokenStore keeps hashed password reset tokens.
type ResetTokenStore interface {
	Put(ctx context.Context, tokenHash []byte, userID string, ttl time.Duration) error
	Consume(ctx context.Context, tokenHash []byte) (string, error)
}

// RequestLimiter admits one request per key per window.
type RequestLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// Dispatcher runs fire-and-forget work such as sending mail.
type Dispatcher func(send func(ctx context.Context) error)

type AuthService struct {
	store     repository.Store
	resets    ResetTokenStore
	limiter   RequestLimiter
	captcha   captcha.Verifier
	mail      mailer.Mailer
	dispatch  Dispatcher
	validator *validation.Validator
	cfg       *config.AppConfig
	log       zerolog.Logger
	now       Clock
}

func NewAuthService(
	store repository.Store,
	resets ResetTokenStore,
	limiter RequestLimiter,
	verifier captcha.Verifier,
	mail mailer.Mailer,
	validator *validation.Validator,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		store:     store,
		resets:    resets,
		limiter:   limiter,
		captcha:   verifier,
		mail:      mail,
		dispatch:  func(send func(ctx context.Context) error) { mailer.SendAsync(log, send) },
		validator: validator,
		cfg:       cfg,
		log:       log,
		now:       systemClock,
	}
}

type RegisterInput struct {
	Email      string       `json:"email" validate:"required,email,max=254"`
	Password   string       `json:"password" validate:"required,min=8,max=128"`
	Name       string       `json:"name" validate:"required,max=40"`
	DeviceID   string       `json:"deviceId"`
	DeviceName string       `json:"deviceName"`
	IPAddress  string       `json:"-"`
	UserAgent  string       `json:"-"`
	Captcha    CaptchaCheck `json:"-"`
}

type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         models.User
	DeviceID     string
	SessionID    string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.Name = strings.TrimSpace(input.Name)
	if err := s.validator.Validate(input); err != nil {
		return AuthResult{}, err
	}
	if err := verifyCaptcha(ctx, s.captcha, s.cfg.Captcha.Enabled, input.Captcha); err != nil {
		return AuthResult{}, err
	}

	if _, err := s.store.Users().FindByEmail(ctx, input.Email); err == nil {
		return AuthResult{}, apperr.Conflict("email already registered")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return AuthResult{}, internal("find user", err)
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, internal("hash password", err)
	}

	user := models.User{
		ID:           ids.New(),
		Email:        input.Email,
		PasswordHash: passwordHash,
		Name:         input.Name,
		Role:         models.UserRoleUser,
		Status:       models.UserStatusActive,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return AuthResult{}, apperr.Conflict("email already registered")
		}
		return AuthResult{}, internal("create user", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("user registered")
	return s.createSession(ctx, user, input.DeviceID, input.DeviceName, input.IPAddress, input.UserAgent)
}

type LoginInput struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	TOTPCode   string `json:"totpCode"`
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
	IPAddress  string `json:"-"`
	UserAgent  string `json:"-"`
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	user, err := s.store.Users().FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, internal("find user", err)
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	if user.Banned {
		return AuthResult{}, apperr.Forbidden("account is banned")
	}

	if user.TwoFactorEnabled {
		if strings.TrimSpace(input.TOTPCode) == "" {
			return AuthResult{}, ErrTwoFactorRequired
		}
		if err := s.checkTOTP(ctx, user.ID, input.TOTPCode); err != nil {
			return AuthResult{}, err
		}
	}

	return s.createSession(ctx, user, input.DeviceID, input.DeviceName, input.IPAddress, input.UserAgent)
}

func (s *AuthService) checkTOTP(ctx context.Context, userID string, code string) error {
	secret, err := s.store.TwoFactor().GetSecret(ctx, userID)
	if errors.Is(err, repository.ErrSecretNotFound) {
		return apperr.InvalidInput("two factor authentication is not set up")
	}
	if err != nil {
		return internal("load two factor secret", err)
	}
	if !security.ValidateTOTP(strings.TrimSpace(code), secret) {
		return apperr.Unauthorized("invalid two factor code")
	}
	return nil
}

func (s *AuthService) createSession(
	ctx context.Context,
	user models.User,
	deviceID string,
	deviceName string,
	ipAddress string,
	userAgent string,
) (AuthResult, error) {
	if deviceID == "" {
		deviceID = ids.New()
	}
	if deviceName == "" {
		deviceName = "Unknown Device"
	}

	refreshToken, refreshHash, err := security.GenerateOpaqueToken(64)
	if err != nil {
		return AuthResult{}, internal("generate refresh token", err)
	}

	session := models.Session{
		ID:               ids.New(),
		UserID:           user.ID,
		DeviceID:         deviceID,
		DeviceName:       deviceName,
		RefreshTokenHash: refreshHash,
		IPAddress:        ipAddress,
		UserAgent:        userAgent,
		ExpiresAt:        s.now().Add(s.cfg.Security.JWTRefreshTTL),
	}

	accessToken, err := security.GenerateAccessToken(
		s.cfg.Security.JWTAccessSecret,
		user.ID,
		session.ID,
		deviceID,
		string(user.Role),
		s.cfg.Security.JWTAccessTTL,
	)
	if err != nil {
		return AuthResult{}, internal("sign access token", err)
	}

	if err := s.store.Sessions().Create(ctx, session); err != nil {
		return AuthResult{}, internal("create session", err)
	}

	if err := s.enforceSessionLimit(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("enforce session limit failed")
	}

	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
		DeviceID:     deviceID,
		SessionID:    session.ID,
	}, nil
}

func (s *AuthService) enforceSessionLimit(ctx context.Context, userID string) error {
	count, err := s.store.Sessions().CountByUser(ctx, userID)
	if err != nil {
		return err
	}
	if count <= s.cfg.Security.MaxSessions {
		return nil
	}
	return s.store.Sessions().DeleteOldestSessions(ctx, userID, s.cfg.Security.MaxSessions)
}

type RefreshInput struct {
	UserID       string `json:"userId"`
	RefreshToken string `json:"refreshToken"`
	DeviceID     string `json:"deviceId"`
}

// Refresh rotates the refresh token of an existing session.
func (s *AuthService) Refresh(ctx context.Context, input RefreshInput) (AuthResult, error) {
	user, err := s.store.Users().GetByID(ctx, input.UserID)
	if err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}
	if user.Banned {
		return AuthResult{}, apperr.Forbidden("account is banned")
	}

	sessions := s.store.Sessions()
	session, err := sessions.FindByRefreshHash(ctx, input.UserID, security.HashOpaqueToken(input.RefreshToken))
	if err != nil || session.DeviceID != input.DeviceID {
		return AuthResult{}, ErrInvalidCredentials
	}

	if session.ExpiresAt.Before(s.now()) {
		_ = sessions.DeleteByID(ctx, session.ID)
		return AuthResult{}, ErrInvalidCredentials
	}

	refreshToken, newHash, err := security.GenerateOpaqueToken(64)
	if err != nil {
		return AuthResult{}, internal("generate refresh token", err)
	}
	session.RefreshTokenHash = newHash
	session.ExpiresAt = s.now().Add(s.cfg.Security.JWTRefreshTTL)
	if err := sessions.Create(ctx, session); err != nil {
		return AuthResult{}, internal("rotate session", err)
	}

	accessToken, err := security.GenerateAccessToken(
		s.cfg.Security.JWTAccessSecret,
		user.ID,
		session.ID,
		session.DeviceID,
		string(user.Role),
		s.cfg.Security.JWTAccessTTL,
	)
	if err != nil {
		return AuthResult{}, internal("sign access token", err)
	}

	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
		DeviceID:     session.DeviceID,
		SessionID:    session.ID,
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, userID string, deviceID string) error {
	if err := s.store.Sessions().DeleteByDevice(ctx, userID, deviceID); err != nil {
		return internal("logout", err)
	}
	return nil
}

func (s *AuthService) Sessions(ctx context.Context, userID string) ([]models.Session, error) {
	sessions, err := s.store.Sessions().ListByUser(ctx, userID)
	if err != nil {
		return nil, internal("list sessions", err)
	}
	return sessions, nil
}

func (s *AuthService) RevokeSession(ctx context.Context, userID string, currentDeviceID string, deviceID string) error {
	if deviceID == "" {
		return apperr.InvalidInput("deviceId required")
	}
	if deviceID == currentDeviceID {
		return apperr.InvalidInput("cannot revoke the current device, log out instead")
	}
	if err := s.store.Sessions().DeleteByDevice(ctx, userID, deviceID); err != nil {
		return internal("revoke session", err)
	}
	return nil
}

type TwoFactorSetup struct {
	Secret string
	URI    string
}

// EnableTwoFactor stores a fresh secret. Two factor stays off until
// VerifyTwoFactor confirms a code generated from it.
func (s *AuthService) EnableTwoFactor(ctx context.Context, userID string) (TwoFactorSetup, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return TwoFactorSetup{}, internal("load user", mapNotFound(err, "user not found"))
	}
	if user.TwoFactorEnabled {
		return TwoFactorSetup{}, apperr.InvalidInput("two factor authentication is already enabled")
	}

	secret, uri, err := security.NewTOTPSecret(user.Email)
	if err != nil {
		return TwoFactorSetup{}, internal("generate totp secret", err)
	}
	if err := s.store.TwoFactor().SaveSecret(ctx, userID, secret); err != nil {
		return TwoFactorSetup{}, internal("save totp secret", err)
	}
	return TwoFactorSetup{Secret: secret, URI: uri}, nil
}

func (s *AuthService) VerifyTwoFactor(ctx context.Context, userID string, code string) error {
	if err := s.checkTOTP(ctx, userID, code); err != nil {
		return err
	}
	if err := s.store.Users().SetTwoFactorEnabled(ctx, userID, true); err != nil {
		return internal("enable two factor", mapNotFound(err, "user not found"))
	}
	return nil
}

type PasswordResetRequest struct {
	Email     string       `json:"email" validate:"required,email"`
	IPAddress string       `json:"-"`
	UserAgent string       `json:"-"`
	Captcha   CaptchaCheck `json:"-"`
}

// RequestPasswordReset mails a reset link when the address belongs to an
// account. The outcome is the same either way so callers cannot probe for
// registered addresses.
func (s *AuthService) RequestPasswordReset(ctx context.Context, input PasswordResetRequest) error {
	allowed, retryAfter, err := s.limiter.Allow(ctx, input.IPAddress+"|"+input.UserAgent)
	if err != nil {
		return internal("password reset limiter", err)
	}
	if !allowed {
		return apperr.Cooldown(retryAfter)
	}

	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if err := s.validator.Validate(input); err != nil {
		return err
	}
	if err := verifyCaptcha(ctx, s.captcha, s.cfg.Captcha.Enabled, input.Captcha); err != nil {
		return err
	}

	user, err := s.store.Users().FindByEmail(ctx, input.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return internal("find user", err)
	}

	token, tokenHash, err := security.GenerateOpaqueToken(32)
	if err != nil {
		return internal("generate reset token", err)
	}
	if err := s.resets.Put(ctx, tokenHash, user.ID, passwordResetTTL); err != nil {
		return internal("store reset token", err)
	}

	link := s.cfg.App.PublicURL + "/reset-password?token=" + url.QueryEscape(token)
	to := user.Email
	s.dispatch(func(ctx context.Context) error {
		return s.mail.SendPasswordReset(ctx, to, link)
	})
	return nil
}

type PasswordResetFinish struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// FinishPasswordReset sets the new password and signs out every session.
func (s *AuthService) FinishPasswordReset(ctx context.Context, input PasswordResetFinish) error {
	if err := s.validator.Validate(input); err != nil {
		return err
	}

	userID, err := s.resets.Consume(ctx, security.HashOpaqueToken(input.Token))
	if errors.Is(err, cache.ErrTokenNotFound) {
		return apperr.InvalidInput("reset link is invalid or has expired")
	}
	if err != nil {
		return internal("consume reset token", err)
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return internal("hash password", err)
	}
	if err := s.store.Users().UpdatePassword(ctx, userID, passwordHash); err != nil {
		return internal("update password", mapNotFound(err, "user not found"))
	}
	if err := s.store.Sessions().DeleteByUser(ctx, userID); err != nil {
		return internal("revoke sessions", err)
	}
	return nil
}
