package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns a bcrypt hash using the given cost. The same
// primitive protects user passwords and device secrets.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares a bcrypt hash and a plain secret.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// NewDeviceSecret returns a 32-byte random secret encoded as URL-safe
// base64. It is handed to the caller exactly once; only its bcrypt
// hash is persisted.
func NewDeviceSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashRefreshRaw returns the SHA-256 hex digest of a raw refresh
// token. The ledger stores only the digest, so reading the table does
// not yield usable tokens. bcrypt is unsuitable here because signed
// JWTs exceed its 72-byte input limit.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// VerifyRefreshHash compares a raw refresh token with a stored digest
// in constant time.
func VerifyRefreshHash(storedHash, raw string) bool {
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(HashRefreshRaw(raw))) == 1
}
