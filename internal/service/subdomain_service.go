package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"devicegalaxy/internal/apperr"
	"devicegalaxy/internal/ids"
	"devicegalaxy/internal/models"
	"devicegalaxy/internal/repository"
	"devicegalaxy/internal/subdomain"
	"devicegalaxy/internal/validation"
)

type SubdomainService struct {
	store     repository.Store
	validator *validation.Validator
	newID     ShareIDFunc
	log       zerolog.Logger
}

func NewSubdomainService(store repository.Store, validator *validation.Validator, newID ShareIDFunc, log zerolog.Logger) *SubdomainService {
	if newID == nil {
		newID = ids.NewShareID
	}
	return &SubdomainService{store: store, validator: validator, newID: newID, log: log}
}

type subdomainInput struct {
	Subdomain string `json:"subdomain" validate:"required,min=2,max=20,subdomain"`
}

type discordTokenInput struct {
	Token string `json:"token" validate:"required,min=35,max=50,discordtoken"`
}

// Claim binds name to the user and creates the internal share that backs
// the storefront.
func (s *SubdomainService) Claim(ctx context.Context, userID string, name string) (models.User, error) {
	name = strings.TrimSpace(name)
	if err := s.validator.Validate(subdomainInput{Subdomain: name}); err != nil {
		return models.User{}, err
	}
	if subdomain.IsReserved(name) {
		return models.User{}, apperr.InvalidInput("Subdomain is reserved and cannot be used")
	}

	user, err := loadWriter(ctx, s.store.Users(), userID)
	if err != nil {
		return models.User{}, err
	}
	if user.Subdomain != nil && *user.Subdomain == name {
		return models.User{}, apperr.InvalidInput("This is already your subdomain.")
	}

	holder, err := s.store.Users().FindBySubdomain(ctx, name)
	switch {
	case err == nil && holder.ID != userID:
		return models.User{}, apperr.Conflict("This subdomain is already taken.")
	case err != nil && !errors.Is(err, repository.ErrUserNotFound):
		return models.User{}, internal("find subdomain", err)
	}

	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.Shares().DeleteInternal(ctx, userID); err != nil {
			return err
		}
		share, err := insertShare(ctx, tx.Shares(), s.newID, models.Share{
			UserID:     userID,
			Visibility: models.AllDevices{},
			Internal:   true,
		})
		if err != nil {
			return err
		}
		if err := tx.Users().SetSubdomain(ctx, userID, &name, &share.ID); err != nil {
			return err
		}
		user.Subdomain = &name
		user.SubdomainShareID = &share.ID
		return nil
	})
	if errors.Is(err, repository.ErrSubdomainTaken) {
		return models.User{}, apperr.Conflict("This subdomain is already taken.")
	}
	if err != nil {
		return models.User{}, internal("claim subdomain", err)
	}

	s.log.Info().Str("user_id", userID).Str("subdomain", name).Msg("subdomain claimed")
	return user, nil
}

// Release drops the subdomain, its internal share and any Discord token.
// confirm must repeat the current subdomain.
func (s *SubdomainService) Release(ctx context.Context, userID string, confirm string) error {
	user, err := loadWriter(ctx, s.store.Users(), userID)
	if err != nil {
		return err
	}
	if user.Subdomain == nil {
		return apperr.InvalidInput("You do not have a subdomain to delete.")
	}
	if strings.TrimSpace(confirm) != *user.Subdomain {
		return apperr.InvalidInput("This does not match your current subdomain.")
	}

	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.Shares().DeleteInternal(ctx, userID); err != nil {
			return err
		}
		return tx.Users().SetSubdomain(ctx, userID, nil, nil)
	})
	if err != nil {
		return internal("release subdomain", err)
	}
	return nil
}

// SetDiscordToken stores or, with a nil token, clears the Discord domain
// verification token.
func (s *SubdomainService) SetDiscordToken(ctx context.Context, userID string, token *string) error {
	if token != nil {
		trimmed := strings.TrimSpace(*token)
		if err := s.validator.Validate(discordTokenInput{Token: trimmed}); err != nil {
			return err
		}
		token = &trimmed
	}

	user, err := loadWriter(ctx, s.store.Users(), userID)
	if err != nil {
		return err
	}
	if user.Subdomain == nil {
		return apperr.InvalidInput("claim a subdomain first")
	}

	if err := s.store.Users().SetDiscordToken(ctx, userID, token); err != nil {
		return internal("set discord token", mapNotFound(err, "user not found"))
	}
	return nil
}

// DiscordToken returns the verification token published for name.
func (s *SubdomainService) DiscordToken(ctx context.Context, name string) (string, error) {
	user, err := s.store.Users().FindBySubdomain(ctx, name)
	if err != nil {
		return "", internal("find subdomain", mapNotFound(err, "subdomain not found"))
	}
	if user.DiscordVerifyToken == nil || *user.DiscordVerifyToken == "" {
		return "", apperr.Forbidden("no discord verification token set")
	}
	return *user.DiscordVerifyToken, nil
}

type StorefrontProfile struct {
	Name        string
	Description string
	Image       *string
	Subdomain   string
}

// Storefront resolves a subdomain to its owner's public profile and the
// scope granted by the internal share.
func (s *SubdomainService) Storefront(ctx context.Context, name string) (StorefrontProfile, Scope, error) {
	user, err := s.store.Users().FindBySubdomain(ctx, name)
	if err != nil {
		return StorefrontProfile{}, Scope{}, internal("find subdomain", mapNotFound(err, "subdomain not found"))
	}
	if user.Banned {
		return StorefrontProfile{}, Scope{}, apperr.NotFound("subdomain not found")
	}

	share, err := s.store.Shares().GetInternal(ctx, user.ID)
	if err != nil {
		return StorefrontProfile{}, Scope{}, internal("load storefront share", mapNotFound(err, "subdomain not found"))
	}
	scope, err := scopeFromShare(share)
	if err != nil {
		return StorefrontProfile{}, Scope{}, err
	}

	return StorefrontProfile{
		Name:        user.Name,
		Description: user.Description,
		Image:       user.Image,
		Subdomain:   name,
	}, scope, nil
}
