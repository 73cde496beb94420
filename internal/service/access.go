package service

import (
	"context"
	"errors"

	"devicegalaxy/internal/apperr"
	"devicegalaxy/internal/models"
	"devicegalaxy/internal/repository"
)

// Scope is the identity and visibility a read request runs under.
type Scope struct {
	OwnerID    string
	Visibility models.Visibility
	// ShareID is empty for the owner's own session.
	ShareID string
}

// OwnerScope is the unconstrained view a signed in user has of their own
// catalog.
func OwnerScope(userID string) Scope {
	return Scope{OwnerID: userID, Visibility: models.AllDevices{}}
}

func (s Scope) IsOwner() bool {
	return s.ShareID == ""
}

// AllowDevice fails with Unauthorized when the scope does not cover
// deviceID.
func (s Scope) AllowDevice(deviceID int64) error {
	if s.Visibility == nil || !s.Visibility.Allows(deviceID) {
		return apperr.Unauthorized("share does not cover this device")
	}
	return nil
}

// RequireAll fails unless the scope covers the whole catalog.
func (s Scope) RequireAll() error {
	if _, ok := s.Visibility.(models.AllDevices); !ok {
		return apperr.Unauthorized("share does not cover this resource")
	}
	return nil
}

// restrict narrows a listing filter to what the scope may see.
func (s Scope) restrict(f models.DeviceFilter) models.DeviceFilter {
	if single, ok := s.Visibility.(models.SingleDevice); ok {
		f.DeviceIDs = []int64{single.DeviceID}
	}
	return f
}

// Resolver turns a session user or a share token into a Scope.
type Resolver struct {
	shares repository.ShareStore
}

func NewResolver(shares repository.ShareStore) *Resolver {
	return &Resolver{shares: shares}
}

// Resolve prefers shareID over the session so an owner following one of
// their own links sees what the link grants.
func (r *Resolver) Resolve(ctx context.Context, sessionUserID string, shareID string) (Scope, error) {
	if shareID != "" {
		return r.ResolveShare(ctx, shareID)
	}
	if sessionUserID != "" {
		return OwnerScope(sessionUserID), nil
	}
	return Scope{}, apperr.Unauthorized("unauthorized")
}

func (r *Resolver) ResolveShare(ctx context.Context, shareID string) (Scope, error) {
	share, err := r.shares.Get(ctx, shareID)
	if errors.Is(err, repository.ErrShareNotFound) {
		return Scope{}, apperr.NotFound("share not found")
	}
	if err != nil {
		return Scope{}, apperr.Internal("load share", err)
	}
	return scopeFromShare(share)
}

func scopeFromShare(share models.Share) (Scope, error) {
	switch share.Visibility.(type) {
	case models.AllDevices, models.SingleDevice:
		return Scope{OwnerID: share.UserID, Visibility: share.Visibility, ShareID: share.ID}, nil
	case models.TagScoped:
		return Scope{}, apperr.NotImplemented("tag shares are not supported yet")
	}
	return Scope{}, apperr.Internal("resolve share", errors.New("unknown share visibility"))
}
