package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/iot-device-console/internal/model"
)

// TokenRepo is the refresh-token ledger. One row is written per
// issued refresh token, keyed by (user_id, token_jti); rotation and
// logout flip the revoked flag and rows are never deleted.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Store inserts a ledger entry for a freshly minted refresh token.
// Only the SHA-256 digest of the token is persisted.
func (r *TokenRepo) Store(ctx context.Context, userID uint64, jti, tokenHash string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_jti, token_hash, expires_at) VALUES (?,?,?,?)",
		userID, jti, tokenHash, expiresAt)
	return err
}

// GetActive returns the non-revoked entry for (userID, jti), or
// ErrNotFound when the token was never issued or is already revoked.
func (r *TokenRepo) GetActive(ctx context.Context, userID uint64, jti string) (model.RefreshTokenRecord, error) {
	var (
		rec     model.RefreshTokenRecord
		comment sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token_jti, token_hash, created_at, expires_at, revoked, comment FROM refresh_tokens WHERE user_id=? AND token_jti=? AND revoked=0 LIMIT 1",
		userID, jti).Scan(&rec.ID, &rec.UserID, &rec.TokenJTI, &rec.TokenHash,
		&rec.CreatedAt, &rec.ExpiresAt, &rec.Revoked, &comment)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RefreshTokenRecord{}, ErrNotFound
	}
	if err != nil {
		return model.RefreshTokenRecord{}, err
	}
	if comment.Valid {
		c := comment.String
		rec.Comment = &c
	}
	return rec, nil
}

// Revoke marks the (userID, jti) entry revoked and reports whether
// this call was the one that flipped it. The conditional UPDATE makes
// revoke-and-check a single atomic read-modify-write: when several
// rotation attempts race on the same token, exactly one caller sees
// true.
func (r *TokenRepo) Revoke(ctx context.Context, userID uint64, jti string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked=1 WHERE user_id=? AND token_jti=? AND revoked=0",
		userID, jti)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
