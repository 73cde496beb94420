package service

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"devicegalaxy/internal/apperr"
	"devicegalaxy/internal/captcha"
	"devicegalaxy/internal/config"
	"devicegalaxy/internal/ids"
	"devicegalaxy/internal/media/imageproc"
	"devicegalaxy/internal/models"
	"devicegalaxy/internal/repository"
	"devicegalaxy/internal/storage"
	"devicegalaxy/internal/validation"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	overviewSize    = 5
)

type DeviceService struct {
	store     repository.Store
	objects   storage.Store
	gate      *CooldownGate
	captcha   captcha.Verifier
	validator *validation.Validator
	cfg       *config.AppConfig
	log       zerolog.Logger
}

func NewDeviceService(
	store repository.Store,
	objects storage.Store,
	gate *CooldownGate,
	verifier captcha.Verifier,
	validator *validation.Validator,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *DeviceService {
	return &DeviceService{
		store:     store,
		objects:   objects,
		gate:      gate,
		captcha:   verifier,
		validator: validator,
		cfg:       cfg,
		log:       log,
	}
}

// DeviceInput carries the editable fields of a device. Attribute fields
// hold free text that is resolved against the attribute registry.
type DeviceInput struct {
	Name           string   `json:"name" validate:"required,max=255"`
	Description    string   `json:"description" validate:"max=1024"`
	Additional     string   `json:"additional" validate:"max=1024"`
	CPU            string   `json:"cpu" validate:"max=255"`
	GPU            string   `json:"gpu" validate:"max=255"`
	Memory         string   `json:"memory" validate:"max=255"`
	Storage        string   `json:"storage" validate:"max=255"`
	OS             string   `json:"os" validate:"max=255"`
	Brand          string   `json:"brand" validate:"max=255"`
	TagIDs         []int64  `json:"tags"`
	ExternalImages []string `json:"externalImages" validate:"max=5,dive,url"`
}

func (in *DeviceInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Additional = strings.TrimSpace(in.Additional)
	in.TagIDs = dedupeIDs(in.TagIDs)

	external := make([]string, 0, len(in.ExternalImages))
	for _, u := range in.ExternalImages {
		if u = strings.TrimSpace(u); u != "" {
			external = append(external, u)
		}
	}
	in.ExternalImages = external
}

func (in DeviceInput) attributeText() map[models.AttributeKind]string {
	return map[models.AttributeKind]string{
		models.AttributeCPU:     in.CPU,
		models.AttributeGPU:     in.GPU,
		models.AttributeMemory:  in.Memory,
		models.AttributeStorage: in.Storage,
		models.AttributeOS:      in.OS,
		models.AttributeBrand:   in.Brand,
	}
}

type CreateDeviceInput struct {
	DeviceInput
	Uploads []Upload     `json:"-"`
	Captcha CaptchaCheck `json:"-"`
}

type UpdateDeviceInput struct {
	DeviceInput
	// KeepImages lists the internal images that survive the edit.
	KeepImages []string `json:"keepImages"`
	Uploads    []Upload `json:"-"`
}

// DeviceView is a device with its references resolved for display.
type DeviceView struct {
	models.Device
	AttributeNames map[models.AttributeKind]string
	Tags           []models.Tag
}

type Overview struct {
	RecentlyCreated []DeviceView
	RecentlyUpdated []DeviceView
	Total           int
}

func (s *DeviceService) Create(ctx context.Context, userID string, input CreateDeviceInput) (models.Device, error) {
	input.normalize()
	if err := s.validator.Validate(input); err != nil {
		return models.Device{}, err
	}
	if err := verifyCaptcha(ctx, s.captcha, s.cfg.Captcha.Enabled, input.Captcha); err != nil {
		return models.Device{}, err
	}
	if err := s.gate.Check(ctx, userID, models.ActionDeviceCreated); err != nil {
		return models.Device{}, err
	}
	if _, err := loadWriter(ctx, s.store.Users(), userID); err != nil {
		return models.Device{}, err
	}

	count, err := s.store.Devices().Count(ctx, userID)
	if err != nil {
		return models.Device{}, internal("count devices", err)
	}
	if count >= s.cfg.App.DeviceLimit {
		return models.Device{}, apperr.Forbidden("device limit reached")
	}

	if err := s.checkTags(ctx, userID, input.TagIDs); err != nil {
		return models.Device{}, err
	}
	if err := checkImageCap(0, len(input.Uploads), len(input.ExternalImages)); err != nil {
		return models.Device{}, err
	}
	photos, err := processDevicePhotos(input.Uploads)
	if err != nil {
		return models.Device{}, err
	}

	var (
		created models.Device
		written []string
	)
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		refs, err := resolveAttributes(ctx, tx, userID, input.attributeText())
		if err != nil {
			return err
		}

		created, err = tx.Devices().Insert(ctx, models.Device{
			UserID:         userID,
			Name:           input.Name,
			Description:    input.Description,
			Additional:     input.Additional,
			Attributes:     refs,
			TagIDs:         input.TagIDs,
			InternalImages: []string{},
			ExternalImages: input.ExternalImages,
		})
		if err != nil {
			return err
		}

		imageIDs, keys, err := s.storePhotos(ctx, created.ID, photos)
		written = keys
		if err != nil {
			return err
		}
		if len(imageIDs) > 0 {
			if err := tx.Devices().SetInternalImages(ctx, created.ID, imageIDs); err != nil {
				return err
			}
		}
		created.InternalImages = imageIDs
		return nil
	})
	if err != nil {
		s.discardObjects(ctx, written)
		return models.Device{}, internal("create device", err)
	}

	s.log.Info().Str("user_id", userID).Int64("device_id", created.ID).Msg("device created")
	return created, nil
}

func (s *DeviceService) Update(ctx context.Context, userID string, deviceID int64, input UpdateDeviceInput) (models.Device, error) {
	input.normalize()
	if err := s.validator.Validate(input); err != nil {
		return models.Device{}, err
	}
	if err := s.gate.Check(ctx, userID, models.ActionDeviceUpdated); err != nil {
		return models.Device{}, err
	}
	if _, err := loadWriter(ctx, s.store.Users(), userID); err != nil {
		return models.Device{}, err
	}

	existing, err := s.store.Devices().Get(ctx, userID, deviceID)
	if err != nil {
		return models.Device{}, mapNotFound(err, "device not found")
	}

	keep := dedupeStrings(input.KeepImages)
	for _, id := range keep {
		if !existing.HasImage(id) {
			return models.Device{}, apperr.InvalidInputf("image %s does not belong to this device", id)
		}
	}
	if err := s.checkTags(ctx, userID, input.TagIDs); err != nil {
		return models.Device{}, err
	}
	if err := checkImageCap(len(keep), len(input.Uploads), len(input.ExternalImages)); err != nil {
		return models.Device{}, err
	}
	photos, err := processDevicePhotos(input.Uploads)
	if err != nil {
		return models.Device{}, err
	}

	var (
		updated models.Device
		written []string
	)
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		refs, err := resolveAttributes(ctx, tx, userID, input.attributeText())
		if err != nil {
			return err
		}

		imageIDs, keys, err := s.storePhotos(ctx, deviceID, photos)
		written = keys
		if err != nil {
			return err
		}

		updated = existing
		updated.Name = input.Name
		updated.Description = input.Description
		updated.Additional = input.Additional
		updated.Attributes = refs
		updated.TagIDs = input.TagIDs
		updated.InternalImages = append(append([]string{}, keep...), imageIDs...)
		updated.ExternalImages = input.ExternalImages
		if err := tx.Devices().Update(ctx, updated); err != nil {
			return err
		}

		return collectDetached(ctx, tx, userID, existing.Attributes, refs)
	})
	if err != nil {
		s.discardObjects(ctx, written)
		return models.Device{}, internal("update device", mapNotFound(err, "device not found"))
	}

	var dropped []string
	for _, id := range existing.InternalImages {
		if !updated.HasImage(id) {
			dropped = append(dropped, storage.DeviceImageKey(deviceID, id))
		}
	}
	s.discardObjects(ctx, dropped)

	return updated, nil
}

func (s *DeviceService) Delete(ctx context.Context, userID string, deviceID int64) error {
	if err := s.gate.Check(ctx, userID, models.ActionDeviceDeleted); err != nil {
		return err
	}
	if _, err := loadWriter(ctx, s.store.Users(), userID); err != nil {
		return err
	}

	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		device, err := tx.Devices().Get(ctx, userID, deviceID)
		if err != nil {
			return err
		}
		if err := tx.Devices().Delete(ctx, userID, deviceID); err != nil {
			return err
		}
		return collectDetached(ctx, tx, userID, device.Attributes, models.AttributeRefs{})
	})
	if err != nil {
		return internal("delete device", mapNotFound(err, "device not found"))
	}

	if err := s.objects.DeletePrefix(ctx, storage.DevicePrefix(deviceID)); err != nil {
		s.log.Warn().Err(err).Int64("device_id", deviceID).Msg("delete device images failed")
	}
	return nil
}

// Get returns one device visible under scope. Devices outside the scope
// and devices of other users are indistinguishable from missing ones.
func (s *DeviceService) Get(ctx context.Context, scope Scope, deviceID int64) (DeviceView, error) {
	if err := scope.AllowDevice(deviceID); err != nil {
		return DeviceView{}, err
	}
	device, err := s.store.Devices().Get(ctx, scope.OwnerID, deviceID)
	if err != nil {
		return DeviceView{}, internal("get device", mapNotFound(err, "device not found"))
	}

	views, err := s.decorate(ctx, scope.OwnerID, []models.Device{device})
	if err != nil {
		return DeviceView{}, err
	}
	return views[0], nil
}

type DevicePageView struct {
	Devices []DeviceView
	Total   int
}

func (s *DeviceService) List(ctx context.Context, scope Scope, query models.DeviceQuery) (DevicePageView, error) {
	if scope.Visibility == nil {
		return DevicePageView{}, apperr.Unauthorized("unauthorized")
	}
	if _, ok := scope.Visibility.(models.TagScoped); ok {
		return DevicePageView{}, apperr.NotImplemented("tag shares are not supported yet")
	}

	query.Filter = scope.restrict(query.Filter)
	query.Sort = models.ParseDeviceSort(string(query.Sort))
	if query.Offset < 0 {
		query.Offset = 0
	}
	switch {
	case query.Limit <= 0:
		query.Limit = defaultPageSize
	case query.Limit > maxPageSize:
		query.Limit = maxPageSize
	}

	page, err := s.store.Devices().List(ctx, scope.OwnerID, query)
	if err != nil {
		return DevicePageView{}, internal("list devices", err)
	}
	views, err := s.decorate(ctx, scope.OwnerID, page.Devices)
	if err != nil {
		return DevicePageView{}, err
	}
	return DevicePageView{Devices: views, Total: page.Total}, nil
}

// Overview backs the dashboard home page.
func (s *DeviceService) Overview(ctx context.Context, userID string) (Overview, error) {
	scope := OwnerScope(userID)

	created, err := s.List(ctx, scope, models.DeviceQuery{Sort: models.SortDateDesc, Limit: overviewSize})
	if err != nil {
		return Overview{}, err
	}
	updated, err := s.List(ctx, scope, models.DeviceQuery{Sort: models.SortUpdatedDesc, Limit: overviewSize})
	if err != nil {
		return Overview{}, err
	}
	return Overview{
		RecentlyCreated: created.Devices,
		RecentlyUpdated: updated.Devices,
		Total:           created.Total,
	}, nil
}

// ImageKey returns the storage key of an image visible under scope.
func (s *DeviceService) ImageKey(ctx context.Context, scope Scope, deviceID int64, imageID string) (string, error) {
	if err := scope.AllowDevice(deviceID); err != nil {
		return "", err
	}
	device, err := s.store.Devices().Get(ctx, scope.OwnerID, deviceID)
	if err != nil {
		return "", internal("get device", mapNotFound(err, "device not found"))
	}
	if !device.HasImage(imageID) {
		return "", apperr.NotFound("image not found")
	}
	return storage.DeviceImageKey(deviceID, imageID), nil
}

func (s *DeviceService) decorate(ctx context.Context, ownerID string, devices []models.Device) ([]DeviceView, error) {
	views := make([]DeviceView, 0, len(devices))
	if len(devices) == 0 {
		return views, nil
	}

	attrs, err := s.store.Attributes().ListByUser(ctx, ownerID)
	if err != nil {
		return nil, internal("list attributes", err)
	}
	names := make(map[int64]string, len(attrs))
	for _, attr := range attrs {
		names[attr.ID] = attr.DisplayName
	}

	tags, err := s.store.Tags().ListByUser(ctx, ownerID)
	if err != nil {
		return nil, internal("list tags", err)
	}
	tagByID := make(map[int64]models.Tag, len(tags))
	for _, tag := range tags {
		tagByID[tag.ID] = tag
	}

	for _, device := range devices {
		view := DeviceView{
			Device:         device,
			AttributeNames: make(map[models.AttributeKind]string),
			Tags:           make([]models.Tag, 0, len(device.TagIDs)),
		}
		for _, kind := range models.AttributeKinds {
			if id := device.Attributes.Get(kind); id != nil {
				view.AttributeNames[kind] = names[*id]
			}
		}
		for _, id := range device.TagIDs {
			if tag, ok := tagByID[id]; ok {
				view.Tags = append(view.Tags, tag)
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *DeviceService) checkTags(ctx context.Context, userID string, tagIDs []int64) error {
	if len(tagIDs) == 0 {
		return nil
	}
	owned, err := s.store.Tags().FilterOwned(ctx, userID, tagIDs)
	if err != nil {
		return internal("check tags", err)
	}
	if len(owned) != len(tagIDs) {
		return apperr.InvalidInput("one or more tags do not exist")
	}
	return nil
}

func checkImageCap(kept, uploaded, external int) error {
	if uploaded > MaxUploadsPerRequest {
		return apperr.InvalidInputf("at most %d files can be uploaded at once", MaxUploadsPerRequest)
	}
	if kept+uploaded+external > models.MaxDeviceImages {
		return apperr.InvalidInputf("a device can hold at most %d images", models.MaxDeviceImages)
	}
	return nil
}

// storePhotos writes processed photos under the device prefix and returns
// their ids together with every key written so far.
func (s *DeviceService) storePhotos(ctx context.Context, deviceID int64, photos []imageproc.Processed) ([]string, []string, error) {
	imageIDs := make([]string, 0, len(photos))
	keys := make([]string, 0, len(photos))
	for _, photo := range photos {
		imageID := ids.NewImageID()
		key := storage.DeviceImageKey(deviceID, imageID)
		if err := s.objects.Put(ctx, key, bytes.NewReader(photo.Data), int64(len(photo.Data)), imageproc.ContentType); err != nil {
			return imageIDs, keys, err
		}
		imageIDs = append(imageIDs, imageID)
		keys = append(keys, key)
	}
	return imageIDs, keys, nil
}

func (s *DeviceService) discardObjects(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.objects.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			s.log.Warn().Err(err).Str("key", key).Msg("delete image failed")
		}
	}
}

func dedupeIDs(in []int64) []int64 {
	out := make([]int64, 0, len(in))
	seen := make(map[int64]struct{}, len(in))
	for _, id := range in {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func dedupeStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
