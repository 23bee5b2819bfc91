// Package service holds the domain logic of the device console:
// user authentication with refresh-token rotation, device identity
// with generation-based token invalidation, the rate- and
// size-limited ingestion gate and the security event log. Domain
// failures are reported through the sentinel errors below; handlers
// translate them into HTTP status codes with errors.Is.
package service

import "errors"

// ErrInvalidCredentials is returned when an email/password pair does
// not match a stored account.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUnauthorized is returned for missing, invalid, revoked or
// stale-generation tokens.
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden is returned when the caller is authenticated but not
// entitled: wrong owner, blocked device, admin self-delete.
var ErrForbidden = errors.New("forbidden")

// ErrAlreadyExists is returned when a unique identity (such as an
// email address) is already taken.
var ErrAlreadyExists = errors.New("already exists")

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrPayloadTooLarge is returned when a reading payload exceeds the
// configured byte limit.
var ErrPayloadTooLarge = errors.New("payload too large")

// ErrRateLimited is returned when a device submits readings faster
// than the configured minimum interval.
var ErrRateLimited = errors.New("rate limited")

// ErrAlreadyLoggedOut is returned when logout finds no active ledger
// entry for the presented refresh token.
var ErrAlreadyLoggedOut = errors.New("already logged out")

// ErrInvalidCategory is returned for unknown device category slugs.
var ErrInvalidCategory = errors.New("unknown device category")

// ErrInvalidStatus is returned when a device update names a status
// that cannot be set directly (the deleted state is reached through
// the delete endpoint only).
var ErrInvalidStatus = errors.New("invalid device status")
