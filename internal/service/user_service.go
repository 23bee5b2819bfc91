package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/iliyamo/iot-device-console/internal/model"
	"github.com/iliyamo/iot-device-console/internal/repository"
	"github.com/iliyamo/iot-device-console/internal/utils"
)

// UserService backs the admin user-management endpoints.
type UserService struct {
	users      UserStore
	bcryptCost int
	log        *SecurityLogger
}

func NewUserService(users UserStore, bcryptCost int, log *SecurityLogger) *UserService {
	return &UserService{users: users, bcryptCost: bcryptCost, log: log}
}

// List returns all accounts, newest first.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

// Get fetches one account by id.
func (s *UserService) Get(ctx context.Context, id uint64) (model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	return user, err
}

// Create adds an account with an explicit role on behalf of an admin.
func (s *UserService) Create(ctx context.Context, email, password string, role model.Role, actingAdmin model.User) (model.User, error) {
	if !role.Valid() {
		role = model.RoleUser
	}
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return model.User{}, err
	}
	id, err := s.users.Create(ctx, email, hash, role)
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
	s.log.Record(model.ActorAdmin, strconv.FormatUint(actingAdmin.ID, 10), "user_create", model.EventSuccess,
		fmt.Sprintf("created account %s", user.Email))
	return user, nil
}

// UserUpdate carries optional account changes; nil means unchanged.
type UserUpdate struct {
	Email    *string
	Password *string
	Role     *model.Role
}

// Update edits an account on behalf of an admin.
func (s *UserService) Update(ctx context.Context, user model.User, actingAdmin model.User, upd UserUpdate) (model.User, error) {
	if upd.Email != nil && *upd.Email != "" {
		user.Email = strings.ToLower(strings.TrimSpace(*upd.Email))
	}
	if upd.Password != nil && *upd.Password != "" {
		hash, err := utils.HashPassword(*upd.Password, s.bcryptCost)
		if err != nil {
			return model.User{}, err
		}
		user.PasswordHash = hash
	}
	if upd.Role != nil {
		if !upd.Role.Valid() {
			return model.User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidStatus, *upd.Role)
		}
		user.Role = *upd.Role
	}
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.User{}, fmt.Errorf("%w: email taken", ErrAlreadyExists)
		}
		return model.User{}, err
	}
	updated, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		return model.User{}, err
	}
	s.log.Record(model.ActorAdmin, strconv.FormatUint(actingAdmin.ID, 10), "user_update", model.EventSuccess,
		fmt.Sprintf("updated account %s", updated.Email))
	return updated, nil
}

// Delete removes an account; devices and refresh tokens cascade. An
// admin cannot delete their own account.
func (s *UserService) Delete(ctx context.Context, user model.User, actingAdmin model.User) error {
	if user.ID == actingAdmin.ID {
		return fmt.Errorf("%w: administrator cannot delete self", ErrForbidden)
	}
	if err := s.users.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: user %d", ErrNotFound, user.ID)
		}
		return err
	}
	s.log.Record(model.ActorAdmin, strconv.FormatUint(actingAdmin.ID, 10), "user_delete", model.EventSuccess,
		fmt.Sprintf("deleted account %s", user.Email))
	return nil
}
