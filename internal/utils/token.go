package utils // package utils provides helpers for token minting and hashing

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"       // random jti generation
)

// TokenKind names one of the three disjoint token classes issued by
// the service. The kind is embedded in every token as the
// `token_type` claim and checked again on decode, so a token minted
// for one audience can never be replayed against another.
type TokenKind string

const (
	UserAccess   TokenKind = "user_access"
	UserRefresh  TokenKind = "user_refresh"
	DeviceAccess TokenKind = "device_access"
)

// ErrInvalidToken is returned when a token has a bad signature, is
// expired or is otherwise malformed.
var ErrInvalidToken = errors.New("token invalid or expired")

// ErrWrongAudience is returned when a structurally valid token
// carries a token_type different from the expected kind.
var ErrWrongAudience = errors.New("token issued for a different audience")

// Claims is the decoded, validated content of a token. TokenVersion
// is only meaningful for device access tokens.
type Claims struct {
	Subject      string
	Role         string
	JTI          string
	TokenVersion int
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// SignedToken bundles a serialized JWT with the claims it was minted
// from, so callers can persist the jti and expiry without re-parsing.
type SignedToken struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// Codec signs and verifies the three token classes. Each class has an
// independent HS256 signing key and TTL supplied by configuration;
// there is no shared or global key material.
type Codec struct {
	UserAccessKey  string
	UserRefreshKey string
	DeviceKey      string
	UserAccessTTL  time.Duration
	UserRefreshTTL time.Duration
	DeviceTTL      time.Duration
}

func (c *Codec) keyFor(kind TokenKind) ([]byte, error) {
	switch kind {
	case UserAccess:
		return []byte(c.UserAccessKey), nil
	case UserRefresh:
		return []byte(c.UserRefreshKey), nil
	case DeviceAccess:
		return []byte(c.DeviceKey), nil
	}
	return nil, fmt.Errorf("unknown token kind %q", kind)
}

func (c *Codec) ttlFor(kind TokenKind) time.Duration {
	switch kind {
	case UserAccess:
		return c.UserAccessTTL
	case UserRefresh:
		return c.UserRefreshTTL
	default:
		return c.DeviceTTL
	}
}

// sign builds and signs an HS256 JWT of the given kind. Extra claims
// are merged on top of the standard set: sub, exp, iat, jti and
// token_type.
func (c *Codec) sign(kind TokenKind, subject string, extra jwt.MapClaims) (SignedToken, error) {
	key, err := c.keyFor(kind)
	if err != nil {
		return SignedToken{}, err
	}
	now := time.Now().UTC()
	exp := now.Add(c.ttlFor(kind))
	jti := uuid.NewString()
	claims := jwt.MapClaims{
		"sub":        subject,
		"exp":        exp.Unix(),
		"iat":        now.Unix(),
		"jti":        jti,
		"token_type": string(kind),
	}
	for k, v := range extra {
		claims[k] = v
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(key)
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, JTI: jti, ExpiresAt: exp}, nil
}

// NewUserAccess mints a short-lived access token for a user. The role
// claim travels inside the token so the role middleware does not need
// a database round trip.
func (c *Codec) NewUserAccess(userID uint64, role string) (SignedToken, error) {
	return c.sign(UserAccess, fmt.Sprintf("%d", userID), jwt.MapClaims{"role": role})
}

// NewUserRefresh mints a long-lived refresh token for a user. The jti
// of the result keys the refresh ledger entry.
func (c *Codec) NewUserRefresh(userID uint64) (SignedToken, error) {
	return c.sign(UserRefresh, fmt.Sprintf("%d", userID), nil)
}

// NewDeviceAccess mints a very short-lived device token embedding the
// device's current token_version. Bumping the version on the device
// record invalidates every token minted before the bump.
func (c *Codec) NewDeviceAccess(deviceID string, tokenVersion int) (SignedToken, error) {
	return c.sign(DeviceAccess, deviceID, jwt.MapClaims{"token_version": tokenVersion})
}

// Decode verifies a token against the key of the expected kind and
// returns its claims. It reports ErrInvalidToken for signature,
// expiry and format problems, and ErrWrongAudience when the token is
// valid but its token_type does not match the expected kind.
func (c *Codec) Decode(raw string, expected TokenKind) (Claims, error) {
	key, err := c.keyFor(expected)
	if err != nil {
		return Claims{}, err
	}
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Only HMAC is ever used for signing; reject anything else.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return key, nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	if kind, _ := mc["token_type"].(string); kind != string(expected) {
		return Claims{}, ErrWrongAudience
	}

	out := Claims{}
	out.Subject, _ = mc["sub"].(string)
	out.Role, _ = mc["role"].(string)
	out.JTI, _ = mc["jti"].(string)
	if v, ok := mc["token_version"].(float64); ok { // JSON numbers decode as float64
		out.TokenVersion = int(v)
	}
	if v, ok := mc["iat"].(float64); ok {
		out.IssuedAt = time.Unix(int64(v), 0).UTC()
	}
	if v, ok := mc["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(v), 0).UTC()
	}
	return out, nil
}
