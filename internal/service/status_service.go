package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"devicegalaxy/internal/apperr"
	"devicegalaxy/internal/config"
	"devicegalaxy/internal/models"
	"devicegalaxy/internal/repository"
)

// StatusService renders a shared device as a Mastodon status so that
// chat clients build a rich embed for share links.
type StatusService struct {
	store repository.Store
	cfg   *config.AppConfig
}

func NewStatusService(store repository.Store, cfg *config.AppConfig) *StatusService {
	return &StatusService{store: store, cfg: cfg}
}

type StatusAccount struct {
	Acct            string  `json:"acct"`
	Username        string  `json:"username"`
	DisplayName     string  `json:"display_name"`
	Avatar          *string `json:"avatar"`
	AvatarStatic    *string `json:"avatar_static"`
	HideCollections bool    `json:"hide_collections"`
	Locked          bool    `json:"locked"`
	Noindex         bool    `json:"noindex"`
	URI             string  `json:"uri"`
	URL             string  `json:"url"`
}

type StatusApplication struct {
	Website *string `json:"website"`
}

type StatusMedia struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	URL        string `json:"url"`
	PreviewURL string `json:"preview_url"`
}

type Status struct {
	ID                 string            `json:"id"`
	Account            StatusAccount     `json:"account"`
	Application        StatusApplication `json:"application"`
	Content            string            `json:"content"`
	CreatedAt          time.Time         `json:"created_at"`
	EditedAt           *time.Time        `json:"edited_at"`
	InReplyToAccountID *string           `json:"in_reply_to_account_id"`
	Language           string            `json:"language"`
	MediaAttachments   []StatusMedia     `json:"media_attachments"`
	Reblog             *Status           `json:"reblog"`
	SpoilerText        string            `json:"spoiler_text"`
	URI                string            `json:"uri"`
	URL                string            `json:"url"`
	Visibility         string            `json:"visibility"`
}

// EncodeStatusID builds the composite id used in status links.
func EncodeStatusID(shareID string, deviceID int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(shareID + "-" + strconv.FormatInt(deviceID, 10)))
}

// DecodeStatusID accepts base64url with or without padding and splits the
// payload at the first hyphen.
func DecodeStatusID(statusID string) (string, int64, error) {
	normalized := strings.TrimRight(statusID, "=")
	normalized = strings.NewReplacer("+", "-", "/", "_").Replace(normalized)

	raw, err := base64.RawURLEncoding.DecodeString(normalized)
	if err != nil {
		return "", 0, apperr.InvalidInput("invalid status id")
	}

	shareID, deviceText, ok := strings.Cut(string(raw), "-")
	if !ok || shareID == "" || deviceText == "" {
		return "", 0, apperr.InvalidInput("invalid status id format")
	}
	deviceID, err := strconv.ParseInt(deviceText, 10, 64)
	if err != nil || deviceID <= 0 {
		return "", 0, apperr.InvalidInput("invalid status id format")
	}
	return shareID, deviceID, nil
}

func (s *StatusService) Status(ctx context.Context, statusID string) (Status, error) {
	shareID, deviceID, err := DecodeStatusID(statusID)
	if err != nil {
		return Status{}, err
	}

	share, err := s.store.Shares().Get(ctx, shareID)
	if err != nil {
		return Status{}, internal("load share", mapNotFound(err, "share not found"))
	}
	if _, ok := share.Visibility.(models.TagScoped); ok {
		return Status{}, apperr.NotImplemented("tag shares are not supported yet")
	}
	if !share.Visibility.Allows(deviceID) {
		return Status{}, apperr.NotFound("device does not match")
	}

	device, err := s.store.Devices().Get(ctx, share.UserID, deviceID)
	if err != nil {
		return Status{}, internal("load device", mapNotFound(err, "device not found"))
	}
	owner, err := s.store.Users().GetByID(ctx, share.UserID)
	if err != nil {
		return Status{}, internal("load user", mapNotFound(err, "user not found"))
	}

	base := s.cfg.App.PublicURL
	shareURL := fmt.Sprintf("%s/share/%s", base, shareID)

	media := make([]StatusMedia, 0, len(device.InternalImages))
	for i, imageID := range device.InternalImages {
		imageURL := fmt.Sprintf("%s/api/image/device/%d/%s?share=%s", base, device.ID, imageID, shareID)
		media = append(media, StatusMedia{
			ID:         strconv.Itoa(i),
			Type:       "image",
			URL:        imageURL,
			PreviewURL: imageURL,
		})
	}

	return Status{
		ID: statusID,
		Account: StatusAccount{
			Acct:         owner.Name,
			Username:     owner.Name,
			DisplayName:  device.Name,
			Avatar:       owner.Image,
			AvatarStatic: owner.Image,
			URI:          shareURL,
			URL:          shareURL,
		},
		Content:          "<p>" + html.EscapeString(device.Description) + "</p>",
		CreatedAt:        device.CreatedAt,
		Language:         "en",
		MediaAttachments: media,
		URI:              shareURL,
		URL:              shareURL,
		Visibility:       "public",
	}, nil
}
