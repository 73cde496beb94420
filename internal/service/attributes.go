package service

import (
	"context"
	"errors"
	"fmt"

	"devicegalaxy/internal/apperr"
	"devicegalaxy/internal/models"
	"devicegalaxy/internal/repository"
)

// resolveAttributes maps the raw text of every kind to an attribute id,
// creating rows on first use. Blank text yields a nil reference.
func resolveAttributes(ctx context.Context, tx repository.Tx, userID string, raw map[models.AttributeKind]string) (models.AttributeRefs, error) {
	var refs models.AttributeRefs
	for _, kind := range models.AttributeKinds {
		value, display, ok := models.NormalizeAttribute(raw[kind])
		if !ok {
			continue
		}
		attr, err := tx.Attributes().FindOrCreate(ctx, userID, kind, value, display)
		if err != nil {
			return models.AttributeRefs{}, fmt.Errorf("resolve %s: %w", kind, err)
		}
		id := attr.ID
		refs.Set(kind, &id)
	}
	return refs, nil
}

// collectIfOrphaned deletes the attribute when no device of userID still
// references it through the column for kind.
func collectIfOrphaned(ctx context.Context, tx repository.Tx, kind models.AttributeKind, attributeID int64, userID string) error {
	used, err := tx.Devices().ReferencesAttribute(ctx, userID, kind, attributeID)
	if err != nil {
		return fmt.Errorf("check %s %d: %w", kind, attributeID, err)
	}
	if used {
		return nil
	}
	if err := tx.Attributes().Delete(ctx, userID, kind, attributeID); err != nil && !errors.Is(err, repository.ErrAttributeNotFound) {
		return fmt.Errorf("delete %s %d: %w", kind, attributeID, err)
	}
	return nil
}

// collectDetached runs the orphan check for every reference of before
// that after no longer holds.
func collectDetached(ctx context.Context, tx repository.Tx, userID string, before, after models.AttributeRefs) error {
	for _, kind := range models.AttributeKinds {
		old := before.Get(kind)
		if old == nil {
			continue
		}
		if cur := after.Get(kind); cur != nil && *cur == *old {
			continue
		}
		if err := collectIfOrphaned(ctx, tx, kind, *old, userID); err != nil {
			return err
		}
	}
	return nil
}

type AttributeService struct {
	store repository.Store
}

func NewAttributeService(store repository.Store) *AttributeService {
	return &AttributeService{store: store}
}

// List returns every attribute row of the user grouped by kind.
func (s *AttributeService) List(ctx context.Context, userID string) (map[models.AttributeKind][]models.Attribute, error) {
	attrs, err := s.store.Attributes().ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list attributes", err)
	}

	grouped := make(map[models.AttributeKind][]models.Attribute, len(models.AttributeKinds))
	for _, kind := range models.AttributeKinds {
		grouped[kind] = []models.Attribute{}
	}
	for _, attr := range attrs {
		grouped[attr.Kind] = append(grouped[attr.Kind], attr)
	}
	return grouped, nil
}

// Filters returns the attribute values in use by the owner's devices.
func (s *AttributeService) Filters(ctx context.Context, scope Scope) (map[models.AttributeKind][]models.FilterOption, error) {
	if _, ok := scope.Visibility.(models.AllDevices); !ok {
		return nil, apperr.Unauthorized("share does not cover filters")
	}
	filters, err := s.store.Attributes().Filters(ctx, scope.OwnerID)
	if err != nil {
		return nil, apperr.Internal("list filters", err)
	}
	return filters, nil
}
