package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"devicegalaxy/internal/apperr"
	"devicegalaxy/internal/models"
	"devicegalaxy/internal/repository"
)

type AdminService struct {
	store repository.Store
	log   zerolog.Logger
}

func NewAdminService(store repository.Store, log zerolog.Logger) *AdminService {
	return &AdminService{store: store, log: log}
}

type UserPage struct {
	Users []models.User
	Total int
}

func (s *AdminService) ListUsers(ctx context.Context, limit, offset int) (UserPage, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	users, total, err := s.store.Users().List(ctx, limit, offset)
	if err != nil {
		return UserPage{}, internal("list users", err)
	}
	return UserPage{Users: users, Total: total}, nil
}

func (s *AdminService) Suspend(ctx context.Context, actor models.User, targetID string, reason string) error {
	if _, err := s.target(ctx, actor, targetID); err != nil {
		return err
	}
	r := normalizeReason(reason)
	if err := s.store.Users().UpdateStatus(ctx, targetID, models.UserStatusSuspended, r); err != nil {
		return internal("suspend user", err)
	}
	s.log.Info().Str("admin_id", actor.ID).Str("user_id", targetID).Msg("user suspended")
	return nil
}

func (s *AdminService) Unsuspend(ctx context.Context, actor models.User, targetID string) error {
	if _, err := s.target(ctx, actor, targetID); err != nil {
		return err
	}
	if err := s.store.Users().UpdateStatus(ctx, targetID, models.UserStatusActive, nil); err != nil {
		return internal("unsuspend user", err)
	}
	s.log.Info().Str("admin_id", actor.ID).Str("user_id", targetID).Msg("user unsuspended")
	return nil
}

// Ban blocks login and signs the user out everywhere.
func (s *AdminService) Ban(ctx context.Context, actor models.User, targetID string, reason string) error {
	if _, err := s.target(ctx, actor, targetID); err != nil {
		return err
	}
	if err := s.store.Users().SetBanned(ctx, targetID, true, normalizeReason(reason)); err != nil {
		return internal("ban user", err)
	}
	if err := s.store.Sessions().DeleteByUser(ctx, targetID); err != nil {
		return internal("revoke sessions", err)
	}
	s.log.Info().Str("admin_id", actor.ID).Str("user_id", targetID).Msg("user banned")
	return nil
}

func (s *AdminService) Unban(ctx context.Context, actor models.User, targetID string) error {
	if _, err := s.target(ctx, actor, targetID); err != nil {
		return err
	}
	if err := s.store.Users().SetBanned(ctx, targetID, false, nil); err != nil {
		return internal("unban user", err)
	}
	s.log.Info().Str("admin_id", actor.ID).Str("user_id", targetID).Msg("user unbanned")
	return nil
}

func (s *AdminService) target(ctx context.Context, actor models.User, targetID string) (models.User, error) {
	if !actor.IsAdmin() {
		return models.User{}, apperr.Forbidden("admin only")
	}
	if actor.ID == targetID {
		return models.User{}, apperr.InvalidInput("cannot moderate your own account")
	}
	target, err := s.store.Users().GetByID(ctx, targetID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return models.User{}, internal("load user", err)
	}
	if target.Role == models.UserRoleSuperAdmin && actor.Role != models.UserRoleSuperAdmin {
		return models.User{}, apperr.Forbidden("only a superadmin can moderate a superadmin")
	}
	return target, nil
}

func normalizeReason(reason string) *string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil
	}
	return &reason
}
