package repository

import (
	"context"
	"time"

	"devicegalaxy/internal/models"
)

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	GetByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindBySubdomain(ctx context.Context, subdomain string) (models.User, error)
	List(ctx context.Context, limit, offset int) ([]models.User, int, error)
	UpdateProfile(ctx context.Context, id string, name string, description string) error
	UpdateEmail(ctx context.Context, id string, email string) error
	UpdatePassword(ctx context.Context, id string, passwordHash []byte) error
	UpdateImage(ctx context.Context, id string, image *string) error
	// SetSubdomain writes both subdomain columns. Clearing the subdomain
	// also clears the Discord verification token.
	SetSubdomain(ctx context.Context, id string, subdomain *string, shareID *string) error
	SetDiscordToken(ctx context.Context, id string, token *string) error
	SetTwoFactorEnabled(ctx context.Context, id string, enabled bool) error
	UpdateStatus(ctx context.Context, id string, status models.UserStatus, reason *string) error
	SetBanned(ctx context.Context, id string, banned bool, reason *string) error
	Delete(ctx context.Context, id string) error
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	CountByUser(ctx context.Context, userID string) (int, error)
	DeleteOldestSessions(ctx context.Context, userID string, keepLatest int) error
	GetByID(ctx context.Context, id string) (models.Session, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByDevice(ctx context.Context, userID string, deviceID string) error
	DeleteByUser(ctx context.Context, userID string) error
	FindByRefreshHash(ctx context.Context, userID string, refreshHash []byte) (models.Session, error)
	ListByUser(ctx context.Context, userID string) ([]models.Session, error)
	Touch(ctx context.Context, sessionID string, ip string, userAgent string) error
}

type TwoFactorStore interface {
	SaveSecret(ctx context.Context, userID string, secret string) error
	GetSecret(ctx context.Context, userID string) (string, error)
}

type DeviceStore interface {
	Count(ctx context.Context, userID string) (int, error)
	Get(ctx context.Context, userID string, id int64) (models.Device, error)
	Insert(ctx context.Context, device models.Device) (models.Device, error)
	Update(ctx context.Context, device models.Device) error
	SetInternalImages(ctx context.Context, id int64, images []string) error
	SetTags(ctx context.Context, id int64, tagIDs []int64) error
	Delete(ctx context.Context, userID string, id int64) error
	List(ctx context.Context, userID string, query models.DeviceQuery) (models.DevicePage, error)
	ListByTag(ctx context.Context, userID string, tagID int64) ([]models.Device, error)
	IDsByUser(ctx context.Context, userID string) ([]int64, error)
	// ReferencesAttribute reports whether any device of userID holds
	// attributeID in the column for kind.
	ReferencesAttribute(ctx context.Context, userID string, kind models.AttributeKind, attributeID int64) (bool, error)
}

type AttributeStore interface {
	// FindOrCreate returns the row for (userID, kind, value), inserting it
	// with displayName when absent. An existing row is never modified.
	FindOrCreate(ctx context.Context, userID string, kind models.AttributeKind, value string, displayName string) (models.Attribute, error)
	Delete(ctx context.Context, userID string, kind models.AttributeKind, id int64) error
	ListByUser(ctx context.Context, userID string) ([]models.Attribute, error)
	Filters(ctx context.Context, userID string) (map[models.AttributeKind][]models.FilterOption, error)
}

type TagStore interface {
	Count(ctx context.Context, userID string) (int, error)
	Get(ctx context.Context, userID string, id int64) (models.Tag, error)
	ListByUser(ctx context.Context, userID string) ([]models.Tag, error)
	// FilterOwned returns the subset of ids owned by userID.
	FilterOwned(ctx context.Context, userID string, ids []int64) ([]int64, error)
	Insert(ctx context.Context, tag models.Tag) (models.Tag, error)
	Update(ctx context.Context, tag models.Tag) error
	Delete(ctx context.Context, userID string, id int64) error
}

type ShareStore interface {
	Get(ctx context.Context, id string) (models.Share, error)
	Insert(ctx context.Context, share models.Share) (models.Share, error)
	ListVisible(ctx context.Context, userID string) ([]models.Share, error)
	DeleteVisible(ctx context.Context, userID string, id string) error
	DeleteAllVisible(ctx context.Context, userID string) (int64, error)
	GetInternal(ctx context.Context, userID string) (models.Share, error)
	DeleteInternal(ctx context.Context, userID string) error
}

type CooldownStore interface {
	// Stamp moves the class timestamp to now when the previous stamp is at
	// least interval old. When refused it returns the previous stamp.
	Stamp(ctx context.Context, userID string, class models.ActionClass, now time.Time, interval time.Duration) (bool, time.Time, error)
}

// Tx exposes the stores that take part in multi step writes.
type Tx interface {
	Users() UserStore
	Devices() DeviceStore
	Attributes() AttributeStore
	Tags() TagStore
	Shares() ShareStore
}

type Store interface {
	Tx
	Sessions() SessionStore
	TwoFactor() TwoFactorStore
	Cooldowns() CooldownStore
	// InTx runs fn in one transaction. An error from fn rolls back every
	// write made through the Tx it received.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
