package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, VerifyPassword(hash, "correct horse battery staple"))
	assert.False(t, VerifyPassword(hash, "wrong password"))
	assert.False(t, VerifyPassword("not-a-hash", "anything"))
}

func TestNewDeviceSecret(t *testing.T) {
	a, err := NewDeviceSecret()
	require.NoError(t, err)
	b, err := NewDeviceSecret()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	// 32 bytes of entropy in unpadded URL-safe base64.
	assert.Len(t, a, 43)
	assert.False(t, strings.ContainsAny(a, "+/="))
}

func TestRefreshDigest(t *testing.T) {
	// Refresh tokens are JWTs well over bcrypt's 72-byte input limit,
	// so the ledger keeps a SHA-256 digest instead.
	raw := strings.Repeat("header.payload.signature", 8)
	digest := HashRefreshRaw(raw)
	assert.Len(t, digest, 64)
	assert.Equal(t, digest, HashRefreshRaw(raw))

	assert.True(t, VerifyRefreshHash(digest, raw))
	assert.False(t, VerifyRefreshHash(digest, raw+"x"))
	assert.False(t, VerifyRefreshHash("deadbeef", raw))
}
