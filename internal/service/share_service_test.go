package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devicegalaxy/internal/apperr"
	"devicegalaxy/internal/models"
)

func sequenceIDs(ids ...string) ShareIDFunc {
	i := 0
	return func() (string, error) {
		if i >= len(ids) {
			return "", fmt.Errorf("ran out of ids")
		}
		id := ids[i]
		i++
		return id, nil
	}
}

func TestCreateShare(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser("u1")
	device := env.addDevice(t, "u1", DeviceInput{Name: "Shared"})

	all, err := env.shares.Create(ctx, "u1", CreateShareInput{Type: models.ShareAllDevices})
	require.NoError(t, err)
	assert.Equal(t, models.AllDevices{}, all.Visibility)
	assert.Len(t, all.ID, 10)

	single, err := env.shares.Create(ctx, "u1", CreateShareInput{Type: models.ShareSingleDevice, DeviceID: &device.ID})
	require.NoError(t, err)
	assert.Equal(t, models.SingleDevice{DeviceID: device.ID}, single.Visibility)

	tests := []struct {
		name  string
		input CreateShareInput
		code  apperr.Code
	}{
		{name: "tag scoped", input: CreateShareInput{Type: models.ShareTagScoped}, code: apperr.CodeNotImplemented},
		{name: "single without device", input: CreateShareInput{Type: models.ShareSingleDevice}, code: apperr.CodeInvalidInput},
		{name: "single foreign device", input: CreateShareInput{Type: models.ShareSingleDevice, DeviceID: new(int64)}, code: apperr.CodeNotFound},
		{name: "unknown type", input: CreateShareInput{Type: models.ShareType(9)}, code: apperr.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.shares.Create(ctx, "u1", tt.input)
			assert.Equal(t, tt.code, apperr.CodeOf(err))
		})
	}
}

func TestCreateShareRetriesCollisions(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.st.users["u1"] = models.User{ID: "u1", Status: models.UserStatusActive}
	store.st.shares["taken"] = models.Share{ID: "taken", UserID: "u1", Visibility: models.AllDevices{}}

	svc := NewShareService(store, sequenceIDs("taken", "taken", "fresh"), zerolog.Nop())
	share, err := svc.Create(ctx, "u1", CreateShareInput{Type: models.ShareAllDevices})
	require.NoError(t, err)
	assert.Equal(t, "fresh", share.ID)

	exhausted := NewShareService(store, sequenceIDs("taken", "taken", "taken", "taken", "taken", "spare"), zerolog.Nop())
	_, err = exhausted.Create(ctx, "u1", CreateShareInput{Type: models.ShareAllDevices})
	assert.Equal(t, apperr.CodeInternal, apperr.CodeOf(err))
}

func TestRevokeSharesKeepsInternal(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser("u1")
	env.addUser("u2")

	_, err := env.subs.Claim(ctx, "u1", "alice")
	require.NoError(t, err)
	first, err := env.shares.Create(ctx, "u1", CreateShareInput{Type: models.ShareAllDevices})
	require.NoError(t, err)
	_, err = env.shares.Create(ctx, "u1", CreateShareInput{Type: models.ShareAllDevices})
	require.NoError(t, err)

	listed, err := env.shares.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	internalShare, err := env.store.Shares().GetInternal(ctx, "u1")
	require.NoError(t, err)
	err = env.shares.Revoke(ctx, "u1", internalShare.ID)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	err = env.shares.Revoke(ctx, "u2", first.ID)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	require.NoError(t, env.shares.Revoke(ctx, "u1", first.ID))

	n, err := env.shares.RevokeAll(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = env.store.Shares().GetInternal(ctx, "u1")
	assert.NoError(t, err)
}

func TestResolver(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser("u1")
	device := env.addDevice(t, "u1", DeviceInput{Name: "D"})

	single, err := env.shares.Create(ctx, "u1", CreateShareInput{Type: models.ShareSingleDevice, DeviceID: &device.ID})
	require.NoError(t, err)
	env.store.st.shares["tagged"] = models.Share{ID: "tagged", UserID: "u1", Visibility: models.TagScoped{TagIDs: []int64{1}}}

	resolver := NewResolver(env.store.Shares())

	scope, err := resolver.Resolve(ctx, "u1", "")
	require.NoError(t, err)
	assert.True(t, scope.IsOwner())
	assert.NoError(t, scope.RequireAll())

	scope, err = resolver.Resolve(ctx, "u1", single.ID)
	require.NoError(t, err)
	assert.False(t, scope.IsOwner(), "share wins over session")
	assert.NoError(t, scope.AllowDevice(device.ID))
	assert.Error(t, scope.AllowDevice(device.ID+1))

	tests := []struct {
		name    string
		session string
		share   string
		code    apperr.Code
	}{
		{name: "anonymous", code: apperr.CodeUnauthorized},
		{name: "unknown share", share: "nope", code: apperr.CodeNotFound},
		{name: "tag share", share: "tagged", code: apperr.CodeNotImplemented},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.Resolve(ctx, tt.session, tt.share)
			assert.Equal(t, tt.code, apperr.CodeOf(err))
		})
	}
}
