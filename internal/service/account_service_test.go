package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devicegalaxy/internal/apperr"
	"devicegalaxy/internal/models"
	"devicegalaxy/internal/queue"
	"devicegalaxy/internal/security"
	"devicegalaxy/internal/storage"
	"devicegalaxy/internal/validation"
)

type enqueued struct {
	taskType string
	fields   map[string]any
}

type fakeQueue struct {
	err  error
	jobs []enqueued
}

func (f *fakeQueue) Enqueue(ctx context.Context, taskType string, fields map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, enqueued{taskType: taskType, fields: fields})
	return nil
}

type accountEnv struct {
	*testEnv
	jobs    *fakeQueue
	account *AccountService
}

func newAccountEnv(t *testing.T) *accountEnv {
	t.Helper()
	base := newTestEnv(t)
	jobs := &fakeQueue{}
	account := NewAccountService(base.store, base.objects, jobs, validation.New(), base.cfg, zerolog.Nop())
	account.now = func() time.Time { return time.Unix(1700000000, 0) }
	return &accountEnv{testEnv: base, jobs: jobs, account: account}
}

func (e *accountEnv) addUserWithPassword(t *testing.T, id string, password string) models.User {
	t.Helper()
	hash, err := security.HashPassword(password)
	require.NoError(t, err)
	user := e.addUser(id)
	user.PasswordHash = hash
	e.store.st.users[id] = user
	return user
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	env := newAccountEnv(t)
	env.addUser("u1")

	user, err := env.account.UpdateProfile(ctx, "u1", ProfileInput{Name: " New Name ", Description: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "New Name", user.Name)
	assert.Equal(t, "hello", env.store.st.users["u1"].Description)

	_, err = env.account.UpdateProfile(ctx, "u1", ProfileInput{Name: strings.Repeat("x", 41)})
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))

	suspended := env.store.st.users["u1"]
	suspended.Status = models.UserStatusSuspended
	env.store.st.users["u1"] = suspended
	_, err = env.account.UpdateProfile(ctx, "u1", ProfileInput{Name: "Blocked"})
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
}

func TestChangeEmailAndPassword(t *testing.T) {
	ctx := context.Background()
	env := newAccountEnv(t)
	env.addUserWithPassword(t, "u1", "old password")
	env.addUser("u2")
	env.store.st.sessions["s1"] = models.Session{ID: "s1", UserID: "u1", DeviceID: "current"}
	env.store.st.sessions["s2"] = models.Session{ID: "s2", UserID: "u1", DeviceID: "elsewhere"}

	err := env.account.ChangeEmail(ctx, "u1", EmailChangeInput{Email: "u2@example.com", Password: "old password"})
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))

	err = env.account.ChangeEmail(ctx, "u1", EmailChangeInput{Email: "fresh@example.com", Password: "nope"})
	assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))

	require.NoError(t, env.account.ChangeEmail(ctx, "u1", EmailChangeInput{Email: "Fresh@Example.com", Password: "old password"}))
	assert.Equal(t, "fresh@example.com", env.store.st.users["u1"].Email)

	suspended := env.store.st.users["u1"]
	suspended.Status = models.UserStatusSuspended
	env.store.st.users["u1"] = suspended

	require.NoError(t, env.account.ChangePassword(ctx, "u1", "current", PasswordChangeInput{
		CurrentPassword: "old password",
		NewPassword:     "new password",
	}))
	ok, err := security.VerifyPassword("new password", env.store.st.users["u1"].PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	_, kept := env.store.st.sessions["s1"]
	_, revoked := env.store.st.sessions["s2"]
	assert.True(t, kept)
	assert.False(t, revoked)
}

func TestProfilePicture(t *testing.T) {
	ctx := context.Background()
	env := newAccountEnv(t)
	env.addUser("u1")

	user, err := env.account.SetProfilePicture(ctx, "u1", pngUpload(t, "me.png"))
	require.NoError(t, err)
	require.NotNil(t, user.Image)
	assert.Equal(t, "https://devicegalaxy.test/api/image/pfp/u1?v=1700000000", *user.Image)
	assert.Contains(t, env.objects.objects, storage.ProfilePictureKey("u1"))

	key, err := env.account.ProfilePictureKey(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "pfp/u1.jpg", key)

	_, err = env.account.SetProfilePicture(ctx, "u1", Upload{Filename: "x.png", Data: []byte("garbage")})
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))

	require.NoError(t, env.account.RemoveProfilePicture(ctx, "u1"))
	assert.Empty(t, env.objects.objects)
	_, err = env.account.ProfilePictureKey(ctx, "u1")
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	env := newAccountEnv(t)
	env.addUserWithPassword(t, "u1", "secret password")

	device, err := env.devices.Create(ctx, "u1", CreateDeviceInput{
		DeviceInput: DeviceInput{Name: "Rig", CPU: "Ryzen"},
		Uploads:     []Upload{pngUpload(t, "1.png")},
	})
	require.NoError(t, err)

	err = env.account.Delete(ctx, "u1", DeleteAccountInput{Password: "wrong"})
	assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))

	require.NoError(t, env.account.Delete(ctx, "u1", DeleteAccountInput{Password: "secret password"}))

	assert.Empty(t, env.store.st.users)
	assert.Empty(t, env.store.st.devices)
	assert.Empty(t, env.store.st.attributes)
	require.Len(t, env.jobs.jobs, 1)
	assert.Equal(t, queue.TaskPurgeImages, env.jobs.jobs[0].taskType)
	assert.Equal(t, storage.DevicePrefix(device.ID)+",pfp/u1.jpg", env.jobs.jobs[0].fields["prefixes"])
	assert.NotEmpty(t, env.objects.objects, "objects are left for the worker")
}

func TestDeleteAccountPurgesInlineWhenQueueFails(t *testing.T) {
	ctx := context.Background()
	env := newAccountEnv(t)
	env.addUserWithPassword(t, "u1", "secret password")
	env.jobs.err = errors.New("redis down")

	_, err := env.devices.Create(ctx, "u1", CreateDeviceInput{
		DeviceInput: DeviceInput{Name: "Rig"},
		Uploads:     []Upload{pngUpload(t, "1.png")},
	})
	require.NoError(t, err)
	require.NotEmpty(t, env.objects.objects)

	require.NoError(t, env.account.Delete(ctx, "u1", DeleteAccountInput{Password: "secret password"}))
	assert.Empty(t, env.objects.objects)
}
