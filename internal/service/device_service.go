package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/iot-device-console/internal/model"
	"github.com/iliyamo/iot-device-console/internal/profiles"
	"github.com/iliyamo/iot-device-console/internal/repository"
	"github.com/iliyamo/iot-device-console/internal/utils"
)

// DeviceService owns the device lifecycle: registration with a
// one-time secret, token issuance and authorization against the
// generation counter, secret rotation, blocking and deletion.
type DeviceService struct {
	devices    DeviceStore
	readings   *ReadingService
	codec      *utils.Codec
	bcryptCost int
	log        *SecurityLogger
}

func NewDeviceService(devices DeviceStore, readings *ReadingService, codec *utils.Codec, bcryptCost int, log *SecurityLogger) *DeviceService {
	return &DeviceService{devices: devices, readings: readings, codec: codec, bcryptCost: bcryptCost, log: log}
}

// DeviceUpdate carries the optional fields of a device update; nil
// means "leave unchanged".
type DeviceUpdate struct {
	Name     *string
	Category *string
	Status   *model.DeviceStatus
}

func ensureDeviceOwner(device model.Device, requester model.User) error {
	if !requester.IsAdmin() && device.OwnerID != requester.ID {
		return fmt.Errorf("%w: device belongs to another user", ErrForbidden)
	}
	return nil
}

// CreateDevice registers a device for the owner, returning the record
// and the one-time plaintext secret. A few historical simulated
// readings are seeded so fresh devices have data to show; seeding
// failures are logged and do not fail the registration.
func (s *DeviceService) CreateDevice(ctx context.Context, owner model.User, name, category string) (model.Device, string, error) {
	profile, ok := profiles.Get(category)
	if !ok {
		return model.Device{}, "", fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	secret, err := utils.NewDeviceSecret()
	if err != nil {
		return model.Device{}, "", err
	}
	hash, err := utils.HashPassword(secret, s.bcryptCost)
	if err != nil {
		return model.Device{}, "", err
	}
	if name == "" {
		name = profile.DefaultName
	}
	device := model.Device{
		ID:           uuid.NewString(),
		Name:         name,
		Category:     profile.Slug,
		OwnerID:      owner.ID,
		Status:       model.DeviceActive,
		SecretHash:   hash,
		TokenVersion: 1,
	}
	if err := s.devices.Create(ctx, device); err != nil {
		return model.Device{}, "", err
	}
	s.log.Record(model.ActorUser, strconv.FormatUint(owner.ID, 10), "device_create", model.EventSuccess,
		fmt.Sprintf("created device %s", device.ID))

	s.seedInitialReadings(ctx, device)

	created, err := s.devices.GetByID(ctx, device.ID)
	if err != nil {
		return device, secret, nil
	}
	return created, secret, nil
}

// seedInitialReadings injects six pre-dated category-shaped samples.
func (s *DeviceService) seedInitialReadings(ctx context.Context, device model.Device) {
	profile := profiles.Resolve(device.Category)
	rng := rand.New(rand.NewSource(profiles.SeedFor(device.ID)))
	now := time.Now().UTC()

	samples := make([]Sample, 0, 6)
	offset := time.Duration(0)
	for i := 0; i < 6; i++ {
		offset += profile.Interval(rng)
		ts := now.Add(-offset)
		payload := profile.Generator(rng, ts, i)
		payload["category"] = profile.Slug
		samples = append(samples, Sample{At: ts, Payload: payload})
	}
	if err := s.readings.SeedSamples(ctx, device, samples); err != nil {
		s.log.Record(model.ActorSystem, device.ID, "reading_seed", model.EventError,
			fmt.Sprintf("sample generation failed: %v", err))
	}
}

// List returns the requester's devices, or every device for admins.
func (s *DeviceService) List(ctx context.Context, requester model.User) ([]model.Device, error) {
	if requester.IsAdmin() {
		return s.devices.ListAll(ctx)
	}
	return s.devices.ListByOwner(ctx, requester.ID)
}

// Get fetches one device with owner-or-admin access control.
func (s *DeviceService) Get(ctx context.Context, deviceID string, requester model.User) (model.Device, error) {
	device, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Device{}, fmt.Errorf("%w: device %s", ErrNotFound, deviceID)
		}
		return model.Device{}, err
	}
	if err := ensureDeviceOwner(device, requester); err != nil {
		return model.Device{}, err
	}
	return device, nil
}

// Deactivate blocks the device and invalidates all its tokens by
// bumping the generation counter.
func (s *DeviceService) Deactivate(ctx context.Context, device model.Device, requester model.User) (model.Device, error) {
	if device.Status == model.DeviceDeleted {
		return model.Device{}, fmt.Errorf("%w: device already deleted", ErrNotFound)
	}
	if err := s.devices.Deactivate(ctx, device.ID, time.Now().UTC()); err != nil {
		return model.Device{}, err
	}
	updated, err := s.devices.GetByID(ctx, device.ID)
	if err != nil {
		return model.Device{}, err
	}
	s.log.Record(model.ActorUser, strconv.FormatUint(requester.ID, 10), "device_block", model.EventSuccess,
		fmt.Sprintf("blocked device %s", device.ID))
	return updated, nil
}

// Delete removes the device and its readings permanently.
func (s *DeviceService) Delete(ctx context.Context, device model.Device, requester model.User) (time.Time, error) {
	if err := ensureDeviceOwner(device, requester); err != nil {
		return time.Time{}, err
	}
	removedAt := time.Now().UTC()
	if err := s.devices.Delete(ctx, device.ID); err != nil {
		return time.Time{}, err
	}
	s.log.Record(model.ActorUser, strconv.FormatUint(requester.ID, 10), "device_delete", model.EventSuccess,
		fmt.Sprintf("deleted device %s", device.ID))
	return removedAt, nil
}

// Update edits name, category and status. Re-categorizing seeds a new
// batch of samples so listings match the new category's shape.
// Setting the deleted status is rejected; that state is reached only
// through Delete.
func (s *DeviceService) Update(ctx context.Context, device model.Device, requester model.User, upd DeviceUpdate) (model.Device, error) {
	if err := ensureDeviceOwner(device, requester); err != nil {
		return model.Device{}, err
	}
	reseed := false
	if upd.Name != nil && *upd.Name != "" {
		device.Name = *upd.Name
	}
	if upd.Category != nil && *upd.Category != "" {
		profile, ok := profiles.Get(*upd.Category)
		if !ok {
			return model.Device{}, fmt.Errorf("%w: %q", ErrInvalidCategory, *upd.Category)
		}
		if device.Category != profile.Slug {
			device.Category = profile.Slug
			reseed = true
		}
	}
	if upd.Status != nil {
		switch *upd.Status {
		case model.DeviceDeleted:
			return model.Device{}, fmt.Errorf("%w: use the delete endpoint", ErrInvalidStatus)
		case model.DeviceBlocked:
			now := time.Now().UTC()
			device.Status = model.DeviceBlocked
			device.DeactivatedAt = &now
		case model.DeviceActive:
			device.Status = model.DeviceActive
			device.DeactivatedAt = nil
		default:
			return model.Device{}, fmt.Errorf("%w: %q", ErrInvalidStatus, *upd.Status)
		}
	}
	if err := s.devices.UpdateInfo(ctx, device); err != nil {
		return model.Device{}, err
	}
	if reseed {
		s.seedInitialReadings(ctx, device)
	}
	updated, err := s.devices.GetByID(ctx, device.ID)
	if err != nil {
		return model.Device{}, err
	}
	s.log.Record(model.ActorUser, strconv.FormatUint(requester.ID, 10), "device_update", model.EventSuccess,
		fmt.Sprintf("updated device %s", device.ID))
	return updated, nil
}

// RotateSecret replaces the device secret and returns the new
// plaintext exactly once. The rotation bumps the generation counter
// (kicking every outstanding token) and reactivates the device.
func (s *DeviceService) RotateSecret(ctx context.Context, device model.Device, requester model.User) (string, error) {
	if err := ensureDeviceOwner(device, requester); err != nil {
		return "", err
	}
	secret, err := utils.NewDeviceSecret()
	if err != nil {
		return "", err
	}
	hash, err := utils.HashPassword(secret, s.bcryptCost)
	if err != nil {
		return "", err
	}
	if err := s.devices.RotateSecret(ctx, device.ID, hash); err != nil {
		return "", err
	}
	s.log.Record(model.ActorUser, strconv.FormatUint(requester.ID, 10), "device_secret_rotate", model.EventSuccess,
		fmt.Sprintf("rotated secret of device %s", device.ID))
	return secret, nil
}

// InvalidateTokens bumps the generation counter without touching the
// device status: "kick all sessions without blocking".
func (s *DeviceService) InvalidateTokens(ctx context.Context, device model.Device, requester model.User) (model.Device, error) {
	if err := ensureDeviceOwner(device, requester); err != nil {
		return model.Device{}, err
	}
	if err := s.devices.BumpTokenVersion(ctx, device.ID); err != nil {
		return model.Device{}, err
	}
	updated, err := s.devices.GetByID(ctx, device.ID)
	if err != nil {
		return model.Device{}, err
	}
	s.log.Record(model.ActorUser, strconv.FormatUint(requester.ID, 10), "device_token_invalidate", model.EventSuccess,
		fmt.Sprintf("invalidated tokens of device %s", device.ID))
	return updated, nil
}

// IssueDeviceToken verifies the device secret and mints a short-lived
// device access token embedding the current token version. It returns
// the token and its TTL in minutes.
func (s *DeviceService) IssueDeviceToken(ctx context.Context, deviceID, secret string) (string, int, error) {
	device, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Record(model.ActorDevice, deviceID, "device_auth", model.EventDenied, "unknown device")
			return "", 0, fmt.Errorf("%w: bad device credentials", ErrUnauthorized)
		}
		return "", 0, err
	}
	if device.Status != model.DeviceActive {
		s.log.Record(model.ActorDevice, deviceID, "device_auth", model.EventDenied, "device not active")
		return "", 0, fmt.Errorf("%w: device is not active", ErrForbidden)
	}
	if !utils.VerifyPassword(device.SecretHash, secret) {
		s.log.Record(model.ActorDevice, deviceID, "device_auth", model.EventDenied, "wrong secret")
		return "", 0, fmt.Errorf("%w: bad device credentials", ErrUnauthorized)
	}
	tok, err := s.codec.NewDeviceAccess(device.ID, device.TokenVersion)
	if err != nil {
		return "", 0, err
	}
	s.log.Record(model.ActorDevice, deviceID, "device_auth", model.EventSuccess, "device token issued")
	return tok.Token, int(s.codec.DeviceTTL.Minutes()), nil
}

// Authorize validates a device access token and returns the device it
// belongs to. The embedded token version must equal the device's
// current one; any state-changing device operation bumps the version
// and instantly strands older tokens here.
func (s *DeviceService) Authorize(ctx context.Context, rawToken string) (model.Device, error) {
	claims, err := s.codec.Decode(rawToken, utils.DeviceAccess)
	if err != nil {
		s.log.Record(model.ActorDevice, "", "device_token_check", model.EventDenied, err.Error())
		return model.Device{}, fmt.Errorf("%w: %s", ErrUnauthorized, err.Error())
	}
	if claims.Subject == "" {
		return model.Device{}, fmt.Errorf("%w: token has no device id", ErrUnauthorized)
	}
	device, err := s.devices.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Record(model.ActorDevice, claims.Subject, "device_token_check", model.EventDenied, "device no longer exists")
			return model.Device{}, fmt.Errorf("%w: device no longer exists", ErrUnauthorized)
		}
		return model.Device{}, err
	}
	if device.Status != model.DeviceActive {
		s.log.Record(model.ActorDevice, device.ID, "device_token_check", model.EventDenied, "device not active")
		return model.Device{}, fmt.Errorf("%w: device is blocked", ErrForbidden)
	}
	if claims.TokenVersion != device.TokenVersion {
		s.log.Record(model.ActorDevice, device.ID, "device_token_check", model.EventDenied, "stale token version")
		return model.Device{}, fmt.Errorf("%w: device token has been invalidated", ErrUnauthorized)
	}
	return device, nil
}
