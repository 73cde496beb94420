package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"devicegalaxy/internal/apperr"
	"devicegalaxy/internal/config"
	"devicegalaxy/internal/media/imageproc"
	"devicegalaxy/internal/models"
	"devicegalaxy/internal/queue"
	"devicegalaxy/internal/repository"
	"devicegalaxy/internal/security"
	"devicegalaxy/internal/storage"
	"devicegalaxy/internal/validation"
)

type AccountService struct {
	store     repository.Store
	objects   storage.Store
	jobs      queue.Enqueuer
	validator *validation.Validator
	cfg       *config.AppConfig
	log       zerolog.Logger
	now       Clock
}

func NewAccountService(
	store repository.Store,
	objects storage.Store,
	jobs queue.Enqueuer,
	validator *validation.Validator,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AccountService {
	return &AccountService{
		store:     store,
		objects:   objects,
		jobs:      jobs,
		validator: validator,
		cfg:       cfg,
		log:       log,
		now:       systemClock,
	}
}

func (s *AccountService) Me(ctx context.Context, userID string) (models.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, apperr.Unauthorized("unauthorized")
	}
	if err != nil {
		return models.User{}, internal("load user", err)
	}
	return user, nil
}

type ProfileInput struct {
	Name        string `json:"name" validate:"required,max=40"`
	Description string `json:"description" validate:"max=1024"`
}

func (s *AccountService) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (models.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	if err := s.validator.Validate(input); err != nil {
		return models.User{}, err
	}
	user, err := loadWriter(ctx, s.store.Users(), userID)
	if err != nil {
		return models.User{}, err
	}
	if err := s.store.Users().UpdateProfile(ctx, userID, input.Name, input.Description); err != nil {
		return models.User{}, internal("update profile", err)
	}
	user.Name = input.Name
	user.Description = input.Description
	return user, nil
}

type EmailChangeInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

func (s *AccountService) ChangeEmail(ctx context.Context, userID string, input EmailChangeInput) error {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if err := s.validator.Validate(input); err != nil {
		return err
	}
	user, err := loadWriter(ctx, s.store.Users(), userID)
	if err != nil {
		return err
	}
	if err := checkPassword(user, input.Password); err != nil {
		return err
	}
	if user.Email == input.Email {
		return nil
	}
	if err := s.store.Users().UpdateEmail(ctx, userID, input.Email); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return apperr.Conflict("email already registered")
		}
		return internal("update email", err)
	}
	return nil
}

type PasswordChangeInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=128"`
}

// ChangePassword is allowed for suspended accounts. Every other session of
// the user is signed out.
func (s *AccountService) ChangePassword(ctx context.Context, userID string, currentDeviceID string, input PasswordChangeInput) error {
	if err := s.validator.Validate(input); err != nil {
		return err
	}
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if user.Banned {
		return apperr.Forbidden("account is banned")
	}
	if err := checkPassword(user, input.CurrentPassword); err != nil {
		return err
	}

	passwordHash, err := security.HashPassword(input.NewPassword)
	if err != nil {
		return internal("hash password", err)
	}
	if err := s.store.Users().UpdatePassword(ctx, userID, passwordHash); err != nil {
		return internal("update password", err)
	}

	sessions, err := s.store.Sessions().ListByUser(ctx, userID)
	if err != nil {
		return internal("list sessions", err)
	}
	for _, session := range sessions {
		if session.DeviceID == currentDeviceID {
			continue
		}
		if err := s.store.Sessions().DeleteByID(ctx, session.ID); err != nil {
			s.log.Warn().Err(err).Str("session_id", session.ID).Msg("revoke session after password change")
		}
	}
	return nil
}

// SetProfilePicture crops the upload to a square, stores it and points the
// user image at the serving endpoint. The version parameter busts caches.
func (s *AccountService) SetProfilePicture(ctx context.Context, userID string, upload Upload) (models.User, error) {
	user, err := loadWriter(ctx, s.store.Users(), userID)
	if err != nil {
		return models.User{}, err
	}

	processed, err := imageproc.ProfilePicture(upload.Data)
	if errors.Is(err, imageproc.ErrDecode) {
		return models.User{}, apperr.InvalidInputf("%s could not be decoded", upload.Filename)
	}
	if err != nil {
		return models.User{}, internal("process image", err)
	}

	key := storage.ProfilePictureKey(userID)
	if err := s.objects.Put(ctx, key, bytes.NewReader(processed.Data), int64(len(processed.Data)), imageproc.ContentType); err != nil {
		return models.User{}, internal("store profile picture", err)
	}

	image := fmt.Sprintf("%s/api/image/pfp/%s?v=%d", s.cfg.App.PublicURL, userID, s.now().Unix())
	if err := s.store.Users().UpdateImage(ctx, userID, &image); err != nil {
		return models.User{}, internal("update image", err)
	}
	user.Image = &image
	return user, nil
}

func (s *AccountService) RemoveProfilePicture(ctx context.Context, userID string) error {
	if _, err := loadWriter(ctx, s.store.Users(), userID); err != nil {
		return err
	}
	if err := s.store.Users().UpdateImage(ctx, userID, nil); err != nil {
		return internal("update image", err)
	}
	if err := s.objects.Delete(ctx, storage.ProfilePictureKey(userID)); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("delete profile picture")
	}
	return nil
}

// ProfilePictureKey returns the object key of a user's profile picture,
// or NotFound when none is set.
func (s *AccountService) ProfilePictureKey(ctx context.Context, userID string) (string, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return "", internal("load user", mapNotFound(err, "image not found"))
	}
	if user.Image == nil || user.Banned {
		return "", apperr.NotFound("image not found")
	}
	return storage.ProfilePictureKey(userID), nil
}

type DeleteAccountInput struct {
	Password string `json:"password" validate:"required"`
}

// Delete removes the account and every row hanging off it. The object
// prefixes are captured first and purged by the worker, or inline when the
// job cannot be queued.
func (s *AccountService) Delete(ctx context.Context, userID string, input DeleteAccountInput) error {
	if err := s.validator.Validate(input); err != nil {
		return err
	}
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if err := checkPassword(user, input.Password); err != nil {
		return err
	}

	deviceIDs, err := s.store.Devices().IDsByUser(ctx, userID)
	if err != nil {
		return internal("list devices", err)
	}
	prefixes := make([]string, 0, len(deviceIDs)+1)
	for _, id := range deviceIDs {
		prefixes = append(prefixes, storage.DevicePrefix(id))
	}
	prefixes = append(prefixes, storage.ProfilePictureKey(userID))

	if err := s.store.Users().Delete(ctx, userID); err != nil {
		return internal("delete user", mapNotFound(err, "user not found"))
	}
	s.log.Info().Str("user_id", userID).Int("devices", len(deviceIDs)).Msg("account deleted")

	err = s.jobs.Enqueue(ctx, queue.TaskPurgeImages, map[string]any{
		"prefixes": strings.Join(prefixes, ","),
	})
	if err == nil {
		return nil
	}

	s.log.Warn().Err(err).Str("user_id", userID).Msg("enqueue image purge failed, purging inline")
	for _, prefix := range prefixes {
		if err := s.objects.DeletePrefix(ctx, prefix); err != nil {
			s.log.Error().Err(err).Str("prefix", prefix).Msg("purge images")
		}
	}
	return nil
}

func checkPassword(user models.User, password string) error {
	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return apperr.Unauthorized("password is incorrect")
	}
	return nil
}
