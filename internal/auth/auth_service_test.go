package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, accessTTL time.Duration) *AuthService {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return newService(key, &key.PublicKey, accessTTL, time.Hour)
}

func TestGenerateTokenPair_CarriesClaims(t *testing.T) {
	svc := newTestService(t, time.Minute)

	pair, err := svc.GenerateTokenPair(42, true)
	require.NoError(t, err)

	access, err := svc.ValidateTokenOfType(pair.AccessToken, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, uint(42), access.UserID)
	assert.True(t, access.MustChangePassword)
	assert.Equal(t, "42", access.Subject)

	refresh, err := svc.ValidateTokenOfType(pair.RefreshToken, TokenTypeRefresh)
	require.NoError(t, err)
	assert.NotEmpty(t, refresh.ID)
	assert.False(t, refresh.MustChangePassword)
}

func TestValidateTokenOfType_RejectsWrongType(t *testing.T) {
	svc := newTestService(t, time.Minute)
	pair, err := svc.GenerateTokenPair(1, false)
	require.NoError(t, err)

	_, err = svc.ValidateTokenOfType(pair.RefreshToken, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestValidateToken_RejectsForeignKeyAndExpired(t *testing.T) {
	svc := newTestService(t, time.Minute)
	other := newTestService(t, time.Minute)

	pair, err := other.GenerateTokenPair(1, false)
	require.NoError(t, err)
	_, err = svc.ValidateToken(pair.AccessToken)
	assert.Error(t, err)

	expired := newService(svc.privateKey, svc.publicKey, time.Minute, time.Hour)
	expired.accessTokenTTL = -time.Minute
	pair, err = expired.GenerateTokenPair(1, false)
	require.NoError(t, err)
	_, err = svc.ValidateToken(pair.AccessToken)
	assert.Error(t, err)

	_, err = svc.ValidateToken("")
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("correct horse battery", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}
