package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"devicegalaxy/internal/apperr"
	"devicegalaxy/internal/config"
	"devicegalaxy/internal/models"
	"devicegalaxy/internal/repository"
	"devicegalaxy/internal/validation"
)

const (
	textColorLight = "#FFFFFF"
	textColorDark  = "#000000"
)

type TagService struct {
	store     repository.Store
	gate      *CooldownGate
	validator *validation.Validator
	cfg       *config.AppConfig
	log       zerolog.Logger
}

func NewTagService(store repository.Store, gate *CooldownGate, validator *validation.Validator, cfg *config.AppConfig, log zerolog.Logger) *TagService {
	return &TagService{
		store:     store,
		gate:      gate,
		validator: validator,
		cfg:       cfg,
		log:       log,
	}
}

type TagInput struct {
	Name  string  `json:"name" validate:"required,max=40"`
	Color *string `json:"color" validate:"omitempty,tagcolor"`
}

func (in *TagInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	if in.Color != nil {
		color := strings.TrimSpace(*in.Color)
		if color == "" {
			in.Color = nil
		} else {
			in.Color = &color
		}
	}
}

// TextColorFor picks black or white text for a #RGB or #RRGGBB
// background by its perceived luminance.
func TextColorFor(background string) (string, bool) {
	hex := strings.TrimPrefix(background, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return "", false
	}
	rgb, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return "", false
	}

	r := float64(rgb >> 16 & 0xff)
	g := float64(rgb >> 8 & 0xff)
	b := float64(rgb & 0xff)
	if r*0.299+g*0.587+b*0.114 <= 186 {
		return textColorLight, true
	}
	return textColorDark, true
}

func (in TagInput) apply(tag models.Tag) models.Tag {
	tag.Name = in.Name
	tag.Color = nil
	tag.TextColor = nil
	if in.Color != nil {
		color := strings.ToUpper(*in.Color)
		if text, ok := TextColorFor(color); ok {
			tag.Color = &color
			tag.TextColor = &text
		}
	}
	return tag
}

func (s *TagService) Create(ctx context.Context, userID string, input TagInput) (models.Tag, error) {
	input.normalize()
	if err := s.validator.Validate(input); err != nil {
		return models.Tag{}, err
	}
	if err := s.gate.Check(ctx, userID, models.ActionTagCreated); err != nil {
		return models.Tag{}, err
	}
	if _, err := loadWriter(ctx, s.store.Users(), userID); err != nil {
		return models.Tag{}, err
	}

	count, err := s.store.Tags().Count(ctx, userID)
	if err != nil {
		return models.Tag{}, internal("count tags", err)
	}
	if count >= s.cfg.App.TagLimit {
		return models.Tag{}, apperr.Forbidden("tag limit reached")
	}

	tag, err := s.store.Tags().Insert(ctx, input.apply(models.Tag{UserID: userID}))
	if err != nil {
		return models.Tag{}, internal("create tag", err)
	}
	return tag, nil
}

func (s *TagService) Update(ctx context.Context, userID string, tagID int64, input TagInput) (models.Tag, error) {
	input.normalize()
	if err := s.validator.Validate(input); err != nil {
		return models.Tag{}, err
	}
	if err := s.gate.Check(ctx, userID, models.ActionTagUpdated); err != nil {
		return models.Tag{}, err
	}
	if _, err := loadWriter(ctx, s.store.Users(), userID); err != nil {
		return models.Tag{}, err
	}

	existing, err := s.store.Tags().Get(ctx, userID, tagID)
	if err != nil {
		return models.Tag{}, internal("get tag", mapNotFound(err, "tag not found"))
	}

	updated := input.apply(existing)
	if err := s.store.Tags().Update(ctx, updated); err != nil {
		return models.Tag{}, internal("update tag", mapNotFound(err, "tag not found"))
	}
	return updated, nil
}

// Delete pulls the tag out of every device that carries it and removes the
// tag row in one transaction.
func (s *TagService) Delete(ctx context.Context, userID string, tagID int64) error {
	if err := s.gate.Check(ctx, userID, models.ActionTagDeleted); err != nil {
		return err
	}
	if _, err := loadWriter(ctx, s.store.Users(), userID); err != nil {
		return err
	}

	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Tags().Get(ctx, userID, tagID); err != nil {
			return err
		}

		devices, err := tx.Devices().ListByTag(ctx, userID, tagID)
		if err != nil {
			return err
		}
		for _, device := range devices {
			remaining := make([]int64, 0, len(device.TagIDs))
			for _, id := range device.TagIDs {
				if id != tagID {
					remaining = append(remaining, id)
				}
			}
			if err := tx.Devices().SetTags(ctx, device.ID, remaining); err != nil {
				return err
			}
		}

		return tx.Tags().Delete(ctx, userID, tagID)
	})
	if err != nil {
		return internal("delete tag", mapNotFound(err, "tag not found"))
	}
	return nil
}

// List returns the owner's tags. Shares only expose tags when they cover
// the whole catalog.
func (s *TagService) List(ctx context.Context, scope Scope) ([]models.Tag, error) {
	if err := scope.RequireAll(); err != nil {
		return nil, err
	}
	tags, err := s.store.Tags().ListByUser(ctx, scope.OwnerID)
	if err != nil {
		return nil, internal("list tags", err)
	}
	return tags, nil
}
