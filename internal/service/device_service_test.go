package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devicegalaxy/internal/apperr"
	"devicegalaxy/internal/models"
	"devicegalaxy/internal/storage"
	"devicegalaxy/internal/validation"
)

func TestCreateDeviceDedupesAttributes(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1")

	first := env.addDevice(t, "u1", DeviceInput{Name: "Desktop", CPU: "Ryzen 7", GPU: "  "})
	second := env.addDevice(t, "u1", DeviceInput{Name: "Laptop", CPU: "  ryzen 7 "})

	require.NotNil(t, first.Attributes.CPU)
	require.NotNil(t, second.Attributes.CPU)
	assert.Equal(t, *first.Attributes.CPU, *second.Attributes.CPU)
	assert.Nil(t, first.Attributes.GPU)

	attrs, err := env.store.Attributes().ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, "Ryzen 7", attrs[0].DisplayName)
	assert.Equal(t, "ryzen 7", attrs[0].Value)
}

func TestAttributesArePerUser(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1")
	env.addUser("u2")

	a := env.addDevice(t, "u1", DeviceInput{Name: "A", OS: "Linux"})
	b := env.addDevice(t, "u2", DeviceInput{Name: "B", OS: "Linux"})

	assert.NotEqual(t, *a.Attributes.OS, *b.Attributes.OS)
}

func TestUpdateDeviceCollectsOrphans(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser("u1")

	device := env.addDevice(t, "u1", DeviceInput{Name: "Desktop", CPU: "Old CPU", Brand: "Acme"})
	env.addDevice(t, "u1", DeviceInput{Name: "Other", Brand: "Acme"})
	oldCPU := *device.Attributes.CPU
	brand := *device.Attributes.Brand

	updated, err := env.devices.Update(ctx, "u1", device.ID, UpdateDeviceInput{
		DeviceInput: DeviceInput{Name: "Desktop", CPU: "New CPU"},
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Attributes.CPU)
	assert.NotEqual(t, oldCPU, *updated.Attributes.CPU)
	assert.Nil(t, updated.Attributes.Brand)

	_, stillThere := env.store.st.attributes[oldCPU]
	assert.False(t, stillThere, "unreferenced cpu should be collected")
	_, brandKept := env.store.st.attributes[brand]
	assert.True(t, brandKept, "brand is still used by another device")
}

func TestDeleteDeviceCollectsOrphansAndImages(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser("u1")

	device, err := env.devices.Create(ctx, "u1", CreateDeviceInput{
		DeviceInput: DeviceInput{Name: "Phone", OS: "Android"},
		Uploads:     []Upload{pngUpload(t, "a.png")},
	})
	require.NoError(t, err)
	require.Len(t, env.objects.keys(storage.DevicePrefix(device.ID)), 1)

	require.NoError(t, env.devices.Delete(ctx, "u1", device.ID))

	assert.Empty(t, env.store.st.attributes)
	assert.Empty(t, env.objects.keys(storage.DevicePrefix(device.ID)))

	err = env.devices.Delete(ctx, "u1", device.ID)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestCreateDeviceQuota(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1")

	for i := 0; i < env.cfg.App.DeviceLimit; i++ {
		env.addDevice(t, "u1", DeviceInput{Name: "Device"})
	}

	_, err := env.devices.Create(context.Background(), "u1", CreateDeviceInput{DeviceInput: DeviceInput{Name: "One more"}})
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
	assert.Len(t, env.store.st.devices, env.cfg.App.DeviceLimit)
}

func TestCreateDeviceRejectsWriters(t *testing.T) {
	tests := []struct {
		name string
		edit func(u *models.User)
	}{
		{name: "suspended", edit: func(u *models.User) { u.Status = models.UserStatusSuspended }},
		{name: "banned", edit: func(u *models.User) { u.Banned = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			user := env.addUser("u1")
			tt.edit(&user)
			env.store.st.users["u1"] = user

			_, err := env.devices.Create(context.Background(), "u1", CreateDeviceInput{DeviceInput: DeviceInput{Name: "X"}})
			assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
			assert.Empty(t, env.store.st.devices)
		})
	}
}

func TestCreateDeviceValidatesInput(t *testing.T) {
	tests := []struct {
		name  string
		input CreateDeviceInput
	}{
		{name: "blank name", input: CreateDeviceInput{DeviceInput: DeviceInput{Name: "   "}}},
		{name: "bad external url", input: CreateDeviceInput{DeviceInput: DeviceInput{Name: "X", ExternalImages: []string{"not a url"}}}},
		{name: "unknown tag", input: CreateDeviceInput{DeviceInput: DeviceInput{Name: "X", TagIDs: []int64{999}}}},
		{name: "undecodable upload", input: CreateDeviceInput{
			DeviceInput: DeviceInput{Name: "X"},
			Uploads:     []Upload{{Filename: "broken.png", MIME: "image/png", Data: []byte("\x89PNG\r\n\x1a\nbroken")}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.addUser("u1")

			_, err := env.devices.Create(context.Background(), "u1", tt.input)
			assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))
			assert.Empty(t, env.store.st.devices)
			assert.Empty(t, env.objects.objects)
		})
	}
}

func TestUpdateDeviceImageCap(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser("u1")

	device, err := env.devices.Create(ctx, "u1", CreateDeviceInput{
		DeviceInput: DeviceInput{Name: "Camera"},
		Uploads:     []Upload{pngUpload(t, "1.png"), pngUpload(t, "2.png"), pngUpload(t, "3.png")},
	})
	require.NoError(t, err)
	require.Len(t, device.InternalImages, 3)

	four := []Upload{pngUpload(t, "a.png"), pngUpload(t, "b.png"), pngUpload(t, "c.png"), pngUpload(t, "d.png")}
	_, err = env.devices.Update(ctx, "u1", device.ID, UpdateDeviceInput{
		DeviceInput: DeviceInput{Name: "Camera"},
		KeepImages:  device.InternalImages,
		Uploads:     four,
	})
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))
	assert.Len(t, env.objects.keys(storage.DevicePrefix(device.ID)), 3)

	updated, err := env.devices.Update(ctx, "u1", device.ID, UpdateDeviceInput{
		DeviceInput: DeviceInput{Name: "Camera"},
		KeepImages:  device.InternalImages,
		Uploads:     four[:2],
	})
	require.NoError(t, err)
	assert.Len(t, updated.InternalImages, models.MaxDeviceImages)
	assert.Equal(t, device.InternalImages, updated.InternalImages[:3])
	assert.Len(t, env.objects.keys(storage.DevicePrefix(device.ID)), models.MaxDeviceImages)
}

func TestUpdateDeviceDropsImages(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser("u1")

	device, err := env.devices.Create(ctx, "u1", CreateDeviceInput{
		DeviceInput: DeviceInput{Name: "Camera"},
		Uploads:     []Upload{pngUpload(t, "1.png"), pngUpload(t, "2.png")},
	})
	require.NoError(t, err)

	_, err = env.devices.Update(ctx, "u1", device.ID, UpdateDeviceInput{
		DeviceInput: DeviceInput{Name: "Camera"},
		KeepImages:  []string{"not-mine"},
	})
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))

	updated, err := env.devices.Update(ctx, "u1", device.ID, UpdateDeviceInput{
		DeviceInput: DeviceInput{Name: "Camera"},
		KeepImages:  device.InternalImages[:1],
	})
	require.NoError(t, err)
	assert.Equal(t, device.InternalImages[:1], updated.InternalImages)
	assert.Equal(t,
		[]string{storage.DeviceImageKey(device.ID, device.InternalImages[0])},
		env.objects.keys(storage.DevicePrefix(device.ID)))
}

func TestDeviceReadsHonorScope(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser("u1")
	env.addUser("u2")

	shown := env.addDevice(t, "u1", DeviceInput{Name: "Shown", CPU: "Ryzen"})
	hidden := env.addDevice(t, "u1", DeviceInput{Name: "Hidden"})
	foreign := env.addDevice(t, "u2", DeviceInput{Name: "Foreign"})

	single := Scope{OwnerID: "u1", Visibility: models.SingleDevice{DeviceID: shown.ID}, ShareID: "s1"}

	page, err := env.devices.List(ctx, single, models.DeviceQuery{})
	require.NoError(t, err)
	require.Len(t, page.Devices, 1)
	assert.Equal(t, shown.ID, page.Devices[0].ID)
	assert.Equal(t, "Ryzen", page.Devices[0].AttributeNames[models.AttributeCPU])
	assert.Equal(t, 1, page.Total)

	_, err = env.devices.Get(ctx, single, hidden.ID)
	assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))

	_, err = env.devices.Get(ctx, OwnerScope("u1"), foreign.ID)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	all, err := env.devices.List(ctx, OwnerScope("u1"), models.DeviceQuery{Sort: models.SortNameDesc})
	require.NoError(t, err)
	require.Len(t, all.Devices, 2)
	assert.Equal(t, "Shown", all.Devices[0].Name)

	_, err = env.devices.List(ctx, Scope{OwnerID: "u1", Visibility: models.TagScoped{}}, models.DeviceQuery{})
	assert.Equal(t, apperr.CodeNotImplemented, apperr.CodeOf(err))
}

func TestDeviceListFilters(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser("u1")

	tag, err := env.tags.Create(ctx, "u1", TagInput{Name: "Work"})
	require.NoError(t, err)

	a := env.addDevice(t, "u1", DeviceInput{Name: "Alpha", CPU: "Intel", TagIDs: []int64{tag.ID}})
	env.addDevice(t, "u1", DeviceInput{Name: "Beta", CPU: "AMD"})

	byCPU, err := env.devices.List(ctx, OwnerScope("u1"), models.DeviceQuery{Filter: models.DeviceFilter{
		Attributes: map[models.AttributeKind][]int64{models.AttributeCPU: {*a.Attributes.CPU}},
	}})
	require.NoError(t, err)
	require.Len(t, byCPU.Devices, 1)
	assert.Equal(t, "Alpha", byCPU.Devices[0].Name)
	require.Len(t, byCPU.Devices[0].Tags, 1)
	assert.Equal(t, "Work", byCPU.Devices[0].Tags[0].Name)

	byTag, err := env.devices.List(ctx, OwnerScope("u1"), models.DeviceQuery{Filter: models.DeviceFilter{TagIDs: []int64{tag.ID}}})
	require.NoError(t, err)
	assert.Equal(t, 1, byTag.Total)

	byName, err := env.devices.List(ctx, OwnerScope("u1"), models.DeviceQuery{Filter: models.DeviceFilter{Name: "bet"}})
	require.NoError(t, err)
	require.Len(t, byName.Devices, 1)
	assert.Equal(t, "Beta", byName.Devices[0].Name)

	filters, err := env.attrs.Filters(ctx, OwnerScope("u1"))
	require.NoError(t, err)
	assert.Len(t, filters[models.AttributeCPU], 2)
	assert.Empty(t, filters[models.AttributeGPU])

	_, err = env.attrs.Filters(ctx, Scope{OwnerID: "u1", Visibility: models.SingleDevice{DeviceID: a.ID}, ShareID: "s"})
	assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))
}

func TestOverview(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1")
	env.addDevice(t, "u1", DeviceInput{Name: "First"})
	env.addDevice(t, "u1", DeviceInput{Name: "Second"})

	overview, err := env.devices.Overview(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, overview.Total)
	require.Len(t, overview.RecentlyCreated, 2)
	assert.Equal(t, "Second", overview.RecentlyCreated[0].Name)
	assert.Len(t, overview.RecentlyUpdated, 2)
}

func TestImageKey(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser("u1")

	device, err := env.devices.Create(ctx, "u1", CreateDeviceInput{
		DeviceInput: DeviceInput{Name: "Camera"},
		Uploads:     []Upload{pngUpload(t, "1.png")},
	})
	require.NoError(t, err)
	imageID := device.InternalImages[0]

	key, err := env.devices.ImageKey(ctx, OwnerScope("u1"), device.ID, imageID)
	require.NoError(t, err)
	assert.Equal(t, storage.DeviceImageKey(device.ID, imageID), key)

	_, err = env.devices.ImageKey(ctx, OwnerScope("u1"), device.ID, "missing")
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	_, err = env.devices.ImageKey(ctx, Scope{OwnerID: "u1", Visibility: models.SingleDevice{DeviceID: device.ID + 1}, ShareID: "s"}, device.ID, imageID)
	assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))
}

func TestDeviceCooldown(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.st.users["u1"] = models.User{ID: "u1", Status: models.UserStatusActive}

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := start
	gate := NewCooldownGate(store.Cooldowns(), 10*time.Second, func() time.Time { return now })
	svc := NewDeviceService(store, newMemObjects(), gate, nil, validation.New(), testConfig(), zerolog.Nop())

	_, err := svc.Create(ctx, "u1", CreateDeviceInput{DeviceInput: DeviceInput{Name: "One"}})
	require.NoError(t, err)

	now = start.Add(3 * time.Second)
	_, err = svc.Create(ctx, "u1", CreateDeviceInput{DeviceInput: DeviceInput{Name: "Two"}})
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperr.CodeCooldown, appErr.Code)
	assert.Equal(t, 7*time.Second, appErr.RetryAfter)

	now = start.Add(11 * time.Second)
	_, err = svc.Create(ctx, "u1", CreateDeviceInput{DeviceInput: DeviceInput{Name: "Three"}})
	assert.NoError(t, err)

	// classes are independent
	_, err = NewTagService(store, gate, validation.New(), testConfig(), zerolog.Nop()).
		Create(ctx, "u1", TagInput{Name: "Fresh"})
	assert.NoError(t, err)
}
