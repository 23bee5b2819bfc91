package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/iot-device-console/internal/model"
	"github.com/iliyamo/iot-device-console/internal/repository"
	"github.com/iliyamo/iot-device-console/internal/utils"
)

// AuthService handles registration, login and the refresh-token
// lifecycle. Refresh tokens are single use: every accepted refresh
// atomically revokes the presented token's ledger entry before a new
// pair is issued, so concurrent rotation attempts on the same token
// yield exactly one winner.
type AuthService struct {
	users      UserStore
	tokens     TokenStore
	codec      *utils.Codec
	bcryptCost int
	log        *SecurityLogger
}

func NewAuthService(users UserStore, tokens TokenStore, codec *utils.Codec, bcryptCost int, log *SecurityLogger) *AuthService {
	return &AuthService{users: users, tokens: tokens, codec: codec, bcryptCost: bcryptCost, log: log}
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	ExpiresInMinutes int
}

// Register creates a new end-user account. The email is case-folded;
// a taken address reports ErrAlreadyExists.
func (s *AuthService) Register(ctx context.Context, email, password string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return model.User{}, err
	}
	id, err := s.users.Create(ctx, email, hash, model.RoleUser)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.User{}, fmt.Errorf("%w: email taken", ErrAlreadyExists)
		}
		return model.User{}, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	s.log.Record(model.ActorUser, strconv.FormatUint(id, 10), "register", model.EventSuccess, "new account")
	return user, nil
}

// Login verifies credentials and issues a token pair. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Record(model.ActorUser, "", "login", model.EventDenied, "unknown email")
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}
	if !utils.VerifyPassword(user.PasswordHash, password) {
		s.log.Record(model.ActorUser, strconv.FormatUint(user.ID, 10), "login", model.EventDenied, "wrong password")
		return TokenPair{}, ErrInvalidCredentials
	}
	return s.CreateTokenPair(ctx, user)
}

// CreateTokenPair mints an access/refresh pair for the user and
// persists the refresh ledger entry, keyed by (user id, jti) and
// holding only the token's digest.
func (s *AuthService) CreateTokenPair(ctx context.Context, user model.User) (TokenPair, error) {
	access, err := s.codec.NewUserAccess(user.ID, string(user.Role))
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.codec.NewUserRefresh(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.tokens.Store(ctx, user.ID, refresh.JTI, utils.HashRefreshRaw(refresh.Token), refresh.ExpiresAt); err != nil {
		return TokenPair{}, err
	}
	s.log.Record(model.ActorUser, strconv.FormatUint(user.ID, 10), "login", model.EventSuccess, "token pair issued")
	return TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		ExpiresInMinutes: int(s.codec.UserAccessTTL.Minutes()),
	}, nil
}

// Refresh rotates a refresh token. The presented token must decode as
// user_refresh, have an active ledger entry for its (sub, jti), be
// unexpired and match the stored digest; an expired or tampered token
// is revoked on sight. Only the caller that wins the atomic revoke
// receives a new pair.
func (s *AuthService) Refresh(ctx context.Context, raw string) (TokenPair, error) {
	claims, err := s.codec.Decode(raw, utils.UserRefresh)
	if err != nil {
		s.log.Record(model.ActorUser, "", "refresh", model.EventDenied, err.Error())
		return TokenPair{}, fmt.Errorf("%w: %s", ErrUnauthorized, err.Error())
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: malformed subject", ErrUnauthorized)
	}
	actor := claims.Subject

	entry, err := s.tokens.GetActive(ctx, userID, claims.JTI)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Record(model.ActorUser, actor, "refresh", model.EventDenied, "refresh token inactive")
			return TokenPair{}, fmt.Errorf("%w: refresh token inactive", ErrUnauthorized)
		}
		return TokenPair{}, err
	}
	if entry.ExpiresAt.Before(time.Now().UTC()) {
		_, _ = s.tokens.Revoke(ctx, userID, claims.JTI)
		s.log.Record(model.ActorUser, actor, "refresh", model.EventDenied, "refresh token expired")
		return TokenPair{}, fmt.Errorf("%w: refresh token expired", ErrUnauthorized)
	}
	if !utils.VerifyRefreshHash(entry.TokenHash, raw) {
		// Digest mismatch for a known jti points at tampering or a
		// leaked signing key; the entry is burned immediately.
		_, _ = s.tokens.Revoke(ctx, userID, claims.JTI)
		s.log.Record(model.ActorUser, actor, "refresh", model.EventDenied, "refresh token rejected")
		return TokenPair{}, fmt.Errorf("%w: refresh token rejected", ErrUnauthorized)
	}

	revoked, err := s.tokens.Revoke(ctx, userID, claims.JTI)
	if err != nil {
		return TokenPair{}, err
	}
	if !revoked {
		// Lost the race against a concurrent refresh of the same token.
		s.log.Record(model.ActorUser, actor, "refresh", model.EventDenied, "refresh token inactive")
		return TokenPair{}, fmt.Errorf("%w: refresh token inactive", ErrUnauthorized)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, fmt.Errorf("%w: user no longer exists", ErrNotFound)
		}
		return TokenPair{}, err
	}
	pair, err := s.CreateTokenPair(ctx, user)
	if err != nil {
		return TokenPair{}, err
	}
	s.log.Record(model.ActorUser, actor, "refresh", model.EventSuccess, "")
	return pair, nil
}

// Logout revokes the presented refresh token on behalf of its owner.
// A token belonging to another user reports ErrForbidden; a token
// with no active ledger entry reports ErrAlreadyLoggedOut.
func (s *AuthService) Logout(ctx context.Context, raw string, caller model.User) error {
	claims, err := s.codec.Decode(raw, utils.UserRefresh)
	if err != nil {
		return err
	}
	if claims.Subject != strconv.FormatUint(caller.ID, 10) {
		return fmt.Errorf("%w: refresh token belongs to another user", ErrForbidden)
	}
	revoked, err := s.tokens.Revoke(ctx, caller.ID, claims.JTI)
	if err != nil {
		return err
	}
	if !revoked {
		return ErrAlreadyLoggedOut
	}
	s.log.Record(model.ActorUser, strconv.FormatUint(caller.ID, 10), "logout", model.EventSuccess, "")
	return nil
}

// EnsureAdminExists seeds the bootstrap admin account when no admin
// is present yet.
func (s *AuthService) EnsureAdminExists(ctx context.Context, email, password string) error {
	ok, err := s.users.HasAdmin(ctx)
	if err != nil || ok {
		return err
	}
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return err
	}
	_, err = s.users.Create(ctx, email, hash, model.RoleAdmin)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil
	}
	return err
}
