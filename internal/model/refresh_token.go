package model

import "time"

// RefreshTokenRecord models an entry in the `refresh_tokens` ledger.
// Each issued refresh token is identified by the (UserID, TokenJTI)
// pair, which is unique. The plain token is not stored; only its
// SHA-256 hex digest. Records are flipped to revoked on rotation or
// logout and are retained for audit, never deleted.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenJTI  – unique token id claim of the refresh JWT.
//  TokenHash – SHA-256 hex digest of the token value.
//  CreatedAt – timestamp of creation.
//  ExpiresAt – expiration copied from the token's exp claim.
//  Revoked   – whether the token has been used or invalidated.
//  Comment   – optional free-text note.
type RefreshTokenRecord struct {
	ID        uint64    // refresh_tokens.id
	UserID    uint64    // refresh_tokens.user_id
	TokenJTI  string    // refresh_tokens.token_jti
	TokenHash string    // refresh_tokens.token_hash
	CreatedAt time.Time // refresh_tokens.created_at
	ExpiresAt time.Time // refresh_tokens.expires_at
	Revoked   bool      // refresh_tokens.revoked
	Comment   *string   // refresh_tokens.comment (nullable)
}
