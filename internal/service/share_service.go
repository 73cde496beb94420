package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"devicegalaxy/internal/apperr"
	"devicegalaxy/internal/ids"
	"devicegalaxy/internal/models"
	"devicegalaxy/internal/repository"
)

const shareIDAttempts = 5

// ShareIDFunc generates candidate share ids.
type ShareIDFunc func() (string, error)

type ShareService struct {
	store repository.Store
	newID ShareIDFunc
	log   zerolog.Logger
}

func NewShareService(store repository.Store, newID ShareIDFunc, log zerolog.Logger) *ShareService {
	if newID == nil {
		newID = ids.NewShareID
	}
	return &ShareService{store: store, newID: newID, log: log}
}

type CreateShareInput struct {
	Type     models.ShareType `json:"type"`
	DeviceID *int64           `json:"deviceId"`
}

func (s *ShareService) Create(ctx context.Context, userID string, input CreateShareInput) (models.Share, error) {
	if _, err := loadWriter(ctx, s.store.Users(), userID); err != nil {
		return models.Share{}, err
	}

	var visibility models.Visibility
	switch input.Type {
	case models.ShareAllDevices:
		visibility = models.AllDevices{}
	case models.ShareTagScoped:
		return models.Share{}, apperr.NotImplemented("sharing tags is not implemented yet")
	case models.ShareSingleDevice:
		if input.DeviceID == nil {
			return models.Share{}, apperr.InvalidInput("device id is required")
		}
		if _, err := s.store.Devices().Get(ctx, userID, *input.DeviceID); err != nil {
			return models.Share{}, internal("get device", mapNotFound(err, "device not found"))
		}
		visibility = models.SingleDevice{DeviceID: *input.DeviceID}
	default:
		return models.Share{}, apperr.InvalidInput("invalid share type")
	}

	share, err := insertShare(ctx, s.store.Shares(), s.newID, models.Share{
		UserID:     userID,
		Visibility: visibility,
	})
	if err != nil {
		return models.Share{}, internal("create share", err)
	}
	return share, nil
}

// insertShare retries with a fresh id while the generated one collides.
func insertShare(ctx context.Context, shares repository.ShareStore, newID ShareIDFunc, share models.Share) (models.Share, error) {
	for attempt := 0; attempt < shareIDAttempts; attempt++ {
		id, err := newID()
		if err != nil {
			return models.Share{}, err
		}
		share.ID = id
		created, err := shares.Insert(ctx, share)
		if errors.Is(err, repository.ErrShareIDTaken) {
			continue
		}
		return created, err
	}
	return models.Share{}, errors.New("could not generate a unique share id")
}

func (s *ShareService) List(ctx context.Context, userID string) ([]models.Share, error) {
	shares, err := s.store.Shares().ListVisible(ctx, userID)
	if err != nil {
		return nil, internal("list shares", err)
	}
	return shares, nil
}

func (s *ShareService) Revoke(ctx context.Context, userID string, shareID string) error {
	if _, err := loadWriter(ctx, s.store.Users(), userID); err != nil {
		return err
	}
	if err := s.store.Shares().DeleteVisible(ctx, userID, shareID); err != nil {
		return internal("revoke share", mapNotFound(err, "share not found"))
	}
	return nil
}

// RevokeAll leaves the share backing the user's subdomain in place.
func (s *ShareService) RevokeAll(ctx context.Context, userID string) (int64, error) {
	if _, err := loadWriter(ctx, s.store.Users(), userID); err != nil {
		return 0, err
	}
	n, err := s.store.Shares().DeleteAllVisible(ctx, userID)
	if err != nil {
		return 0, internal("revoke shares", err)
	}
	return n, nil
}
