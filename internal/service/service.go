// Package service holds the application logic behind the HTTP handlers.
// Services depend on the repository interfaces and report failures as
// apperr values.
package service

import (
	"context"
	"errors"
	"time"

	"devicegalaxy/internal/apperr"
	"devicegalaxy/internal/captcha"
	"devicegalaxy/internal/models"
	"devicegalaxy/internal/repository"
)

// Clock returns the current time. Tests replace it to step through
// cooldown windows.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// mapNotFound turns any repository not-found sentinel into a NotFound
// with msg. Other errors pass through unchanged.
func mapNotFound(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrDeviceNotFound),
		errors.Is(err, repository.ErrTagNotFound),
		errors.Is(err, repository.ErrShareNotFound),
		errors.Is(err, repository.ErrAttributeNotFound),
		errors.Is(err, repository.ErrSessionNotFound):
		return apperr.NotFound(msg)
	}
	return err
}

// internal wraps an unexpected error unless it already carries a code.
func internal(msg string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Internal(msg, err)
}

// loadWriter returns the user about to perform a mutation, rejecting
// suspended and banned accounts.
func loadWriter(ctx context.Context, users repository.UserStore, userID string) (models.User, error) {
	user, err := users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, apperr.Unauthorized("unauthorized")
	}
	if err != nil {
		return models.User{}, internal("load user", err)
	}
	if user.Banned {
		return models.User{}, apperr.Forbidden("account is banned")
	}
	if user.Suspended() {
		return models.User{}, apperr.Forbidden("account is suspended")
	}
	return user, nil
}

type CaptchaCheck struct {
	Token    string
	RemoteIP string
}

func verifyCaptcha(ctx context.Context, v captcha.Verifier, enabled bool, check CaptchaCheck) error {
	if !enabled {
		return nil
	}
	if check.Token == "" {
		return apperr.InvalidInput("captcha token is required")
	}
	ok, err := v.Verify(ctx, check.Token, check.RemoteIP)
	if err != nil {
		return apperr.Upstream("captcha verification failed", err)
	}
	if !ok {
		return apperr.InvalidInput("invalid captcha token, please try again")
	}
	return nil
}
