package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec() *Codec {
	return &Codec{
		UserAccessKey:  "access-key",
		UserRefreshKey: "refresh-key",
		DeviceKey:      "device-key",
		UserAccessTTL:  15 * time.Minute,
		UserRefreshTTL: 7 * 24 * time.Hour,
		DeviceTTL:      5 * time.Minute,
	}
}

func TestUserAccessRoundTrip(t *testing.T) {
	c := newTestCodec()
	tok, err := c.NewUserAccess(42, "admin")
	require.NoError(t, err)
	require.NotEmpty(t, tok.Token)
	require.NotEmpty(t, tok.JTI)

	claims, err := c.Decode(tok.Token, UserAccess)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, tok.JTI, claims.JTI)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt, 5*time.Second)
}

func TestDeviceAccessCarriesTokenVersion(t *testing.T) {
	c := newTestCodec()
	tok, err := c.NewDeviceAccess("dev-abc", 7)
	require.NoError(t, err)

	claims, err := c.Decode(tok.Token, DeviceAccess)
	require.NoError(t, err)
	assert.Equal(t, "dev-abc", claims.Subject)
	assert.Equal(t, 7, claims.TokenVersion)
}

func TestAudiencesAreDisjoint(t *testing.T) {
	c := newTestCodec()

	access, err := c.NewUserAccess(1, "user")
	require.NoError(t, err)
	refresh, err := c.NewUserRefresh(1)
	require.NoError(t, err)
	device, err := c.NewDeviceAccess("dev-1", 1)
	require.NoError(t, err)

	// Every cross-audience decode must fail: the keys differ, so even
	// before the token_type check the signature does not verify.
	for _, tc := range []struct {
		token string
		kind  TokenKind
	}{
		{access.Token, UserRefresh},
		{access.Token, DeviceAccess},
		{refresh.Token, UserAccess},
		{refresh.Token, DeviceAccess},
		{device.Token, UserAccess},
		{device.Token, UserRefresh},
	} {
		_, err := c.Decode(tc.token, tc.kind)
		assert.Error(t, err, "token accepted for kind %s", tc.kind)
	}
}

func TestDecodeRejectsWrongAudienceWithSharedKey(t *testing.T) {
	// With deliberately identical keys the signature verifies, so the
	// token_type claim is the last line of defense.
	c := newTestCodec()
	c.UserRefreshKey = c.UserAccessKey

	access, err := c.NewUserAccess(1, "user")
	require.NoError(t, err)

	_, err = c.Decode(access.Token, UserRefresh)
	assert.ErrorIs(t, err, ErrWrongAudience)
}

func TestDecodeRejectsTamperedToken(t *testing.T) {
	c := newTestCodec()
	tok, err := c.NewUserAccess(1, "user")
	require.NoError(t, err)

	raw := tok.Token
	tampered := raw[:len(raw)-2] + "xx"
	_, err = c.Decode(tampered, UserAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = c.Decode("not-a-jwt", UserAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeRejectsExpiredToken(t *testing.T) {
	c := newTestCodec()
	c.UserAccessTTL = -time.Minute

	tok, err := c.NewUserAccess(1, "user")
	require.NoError(t, err)

	_, err = c.Decode(tok.Token, UserAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJTIsAreUnique(t *testing.T) {
	c := newTestCodec()
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		tok, err := c.NewUserRefresh(1)
		require.NoError(t, err)
		assert.False(t, seen[tok.JTI])
		seen[tok.JTI] = true
	}
}
