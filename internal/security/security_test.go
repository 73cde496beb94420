package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	params := Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}
	hash, err := HashPasswordWithParams("correct horse", params)
	require.NoError(t, err)

	ok, err := VerifyPassword("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong horse", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyPassword("x", []byte("garbage"))
	assert.Error(t, err)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := GenerateAccessToken("secret", "user-1", "sess-1", "dev-1", "user", time.Minute)
	require.NoError(t, err)

	claims, err := ParseAccessToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "dev-1", claims.DeviceID)

	_, err = ParseAccessToken(token, "other")
	assert.Error(t, err)
}

func TestAccessTokenExpired(t *testing.T) {
	token, err := GenerateAccessToken("secret", "user-1", "sess-1", "dev-1", "user", -time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken(token, "secret")
	assert.Error(t, err)
}

func TestOpaqueToken(t *testing.T) {
	token, hash, err := GenerateOpaqueToken(32)
	require.NoError(t, err)
	assert.Equal(t, hash, HashOpaqueToken(token))

	other, _, err := GenerateOpaqueToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestTOTP(t *testing.T) {
	secret, uri, err := NewTOTPSecret("alice@example.com")
	require.NoError(t, err)
	assert.Contains(t, uri, "otpauth://totp/")

	code, err := TOTPCode(secret, time.Now())
	require.NoError(t, err)
	assert.True(t, ValidateTOTP(code, secret))
	assert.False(t, ValidateTOTP("000000x", secret))
}
