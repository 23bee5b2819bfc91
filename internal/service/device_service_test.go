package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/iot-device-console/internal/model"
)

type deviceFixture struct {
	devices  *memDeviceStore
	readings *memReadingStore
	events   *memEventStore
	svc      *DeviceService
	rsvc     *ReadingService
}

func newDeviceFixture(t *testing.T) *deviceFixture {
	t.Helper()
	f := &deviceFixture{
		devices:  newMemDeviceStore(),
		readings: newMemReadingStore(),
		events:   newMemEventStore(),
	}
	log := NewSecurityLogger(f.events, nil)
	f.rsvc = NewReadingService(f.readings, f.devices, log, 2048, time.Second, 100)
	f.svc = NewDeviceService(f.devices, f.rsvc, testCodec(), bcrypt.MinCost, log)
	return f
}

func TestCreateDeviceSeedsHistory(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()

	device, secret, err := f.svc.CreateDevice(ctx, owner(), "balcony", "weather_station")
	require.NoError(t, err)
	assert.NotEmpty(t, secret)
	assert.Equal(t, model.DeviceActive, device.Status)
	assert.Equal(t, 1, device.TokenVersion)
	assert.Equal(t, "weather_station", device.Category)
	require.NotNil(t, device.LastReadingAt)

	// The seeded history is simulated and therefore hidden by default.
	visible, err := f.rsvc.ListReadings(ctx, device, owner(), 0, nil, nil, false)
	require.NoError(t, err)
	assert.Empty(t, visible)

	seeded, err := f.rsvc.ListReadings(ctx, device, owner(), 0, nil, nil, true)
	require.NoError(t, err)
	assert.Len(t, seeded, 6)
	for _, rd := range seeded {
		assert.True(t, rd.Simulated())
		assert.True(t, rd.ReceivedAt.Before(time.Now().UTC()))
	}
}

func TestCreateDeviceRejectsUnknownCategory(t *testing.T) {
	f := newDeviceFixture(t)
	_, _, err := f.svc.CreateDevice(context.Background(), owner(), "x", "toaster")
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestCreateDeviceDefaultsName(t *testing.T) {
	f := newDeviceFixture(t)
	device, _, err := f.svc.CreateDevice(context.Background(), owner(), "", "smart_lock")
	require.NoError(t, err)
	assert.NotEmpty(t, device.Name)
}

func TestIssueDeviceTokenAndAuthorize(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()

	device, secret, err := f.svc.CreateDevice(ctx, owner(), "cam", "ip_camera")
	require.NoError(t, err)

	token, ttl, err := f.svc.IssueDeviceToken(ctx, device.ID, secret)
	require.NoError(t, err)
	assert.Equal(t, 5, ttl)

	authed, err := f.svc.Authorize(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, device.ID, authed.ID)

	// Wrong secret and unknown device are both unauthorized.
	_, _, err = f.svc.IssueDeviceToken(ctx, device.ID, "not-the-secret")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, _, err = f.svc.IssueDeviceToken(ctx, "no-such-device", secret)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestInvalidateTokensStrandsOldTokens(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()

	device, secret, err := f.svc.CreateDevice(ctx, owner(), "cam", "ip_camera")
	require.NoError(t, err)
	token, _, err := f.svc.IssueDeviceToken(ctx, device.ID, secret)
	require.NoError(t, err)

	updated, err := f.svc.InvalidateTokens(ctx, device, owner())
	require.NoError(t, err)
	assert.Equal(t, device.TokenVersion+1, updated.TokenVersion)
	assert.Equal(t, model.DeviceActive, updated.Status)

	// The pre-bump token still has a valid signature but a stale
	// version, so it no longer authorizes.
	_, err = f.svc.Authorize(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// The secret itself still works and yields a usable token.
	fresh, _, err := f.svc.IssueDeviceToken(ctx, device.ID, secret)
	require.NoError(t, err)
	_, err = f.svc.Authorize(ctx, fresh)
	require.NoError(t, err)
}

func TestDeactivateBlocksDeviceAndTokens(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()

	device, secret, err := f.svc.CreateDevice(ctx, owner(), "lock", "smart_lock")
	require.NoError(t, err)
	token, _, err := f.svc.IssueDeviceToken(ctx, device.ID, secret)
	require.NoError(t, err)

	blocked, err := f.svc.Deactivate(ctx, device, owner())
	require.NoError(t, err)
	assert.Equal(t, model.DeviceBlocked, blocked.Status)
	require.NotNil(t, blocked.DeactivatedAt)

	// Blocked devices can neither use old tokens nor mint new ones.
	_, err = f.svc.Authorize(ctx, token)
	assert.ErrorIs(t, err, ErrForbidden)
	_, _, err = f.svc.IssueDeviceToken(ctx, device.ID, secret)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRotateSecret(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()

	device, oldSecret, err := f.svc.CreateDevice(ctx, owner(), "aq", "air_quality")
	require.NoError(t, err)
	oldToken, _, err := f.svc.IssueDeviceToken(ctx, device.ID, oldSecret)
	require.NoError(t, err)

	// Block first so rotation can prove it reactivates.
	_, err = f.svc.Deactivate(ctx, device, owner())
	require.NoError(t, err)

	newSecret, err := f.svc.RotateSecret(ctx, device, owner())
	require.NoError(t, err)
	assert.NotEqual(t, oldSecret, newSecret)

	rotated, err := f.devices.GetByID(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeviceActive, rotated.Status)
	assert.Nil(t, rotated.DeactivatedAt)
	assert.Greater(t, rotated.TokenVersion, device.TokenVersion)

	// Old credentials are dead on both planes.
	_, err = f.svc.Authorize(ctx, oldToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, _, err = f.svc.IssueDeviceToken(ctx, device.ID, oldSecret)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// The new secret mints tokens that authorize.
	token, _, err := f.svc.IssueDeviceToken(ctx, device.ID, newSecret)
	require.NoError(t, err)
	_, err = f.svc.Authorize(ctx, token)
	require.NoError(t, err)
}

func TestUpdateDevice(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()

	device, _, err := f.svc.CreateDevice(ctx, owner(), "old name", "indoor_thermometer")
	require.NoError(t, err)

	name := "new name"
	updated, err := f.svc.Update(ctx, device, owner(), DeviceUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "new name", updated.Name)

	// Re-categorizing seeds fresh samples in the new category's shape.
	category := "air_quality"
	updated, err = f.svc.Update(ctx, updated, owner(), DeviceUpdate{Category: &category})
	require.NoError(t, err)
	assert.Equal(t, "air_quality", updated.Category)
	all, err := f.rsvc.ListReadings(ctx, updated, owner(), 0, nil, nil, true)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(all), 12)

	bad := "toaster"
	_, err = f.svc.Update(ctx, updated, owner(), DeviceUpdate{Category: &bad})
	assert.ErrorIs(t, err, ErrInvalidCategory)

	// The deleted status is never settable directly.
	deleted := model.DeviceDeleted
	_, err = f.svc.Update(ctx, updated, owner(), DeviceUpdate{Status: &deleted})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	blockedStatus := model.DeviceBlocked
	updated, err = f.svc.Update(ctx, updated, owner(), DeviceUpdate{Status: &blockedStatus})
	require.NoError(t, err)
	assert.Equal(t, model.DeviceBlocked, updated.Status)
	require.NotNil(t, updated.DeactivatedAt)

	activeStatus := model.DeviceActive
	updated, err = f.svc.Update(ctx, updated, owner(), DeviceUpdate{Status: &activeStatus})
	require.NoError(t, err)
	assert.Equal(t, model.DeviceActive, updated.Status)
	assert.Nil(t, updated.DeactivatedAt)
}

func TestOwnershipEnforced(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()

	device, _, err := f.svc.CreateDevice(ctx, owner(), "mine", "weather_station")
	require.NoError(t, err)

	stranger := model.User{ID: 99, Role: model.RoleUser}
	_, err = f.svc.Get(ctx, device.ID, stranger)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.RotateSecret(ctx, device, stranger)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Delete(ctx, device, stranger)
	assert.ErrorIs(t, err, ErrForbidden)

	admin := model.User{ID: 50, Role: model.RoleAdmin}
	_, err = f.svc.Get(ctx, device.ID, admin)
	require.NoError(t, err)
}

func TestDeleteDevice(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()

	device, _, err := f.svc.CreateDevice(ctx, owner(), "gone", "weather_station")
	require.NoError(t, err)

	removedAt, err := f.svc.Delete(ctx, device, owner())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), removedAt, 5*time.Second)

	_, err = f.svc.Get(ctx, device.ID, owner())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListScopesByOwner(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.CreateDevice(ctx, owner(), "a", "weather_station")
	require.NoError(t, err)
	other := model.User{ID: 2, Role: model.RoleUser}
	_, _, err = f.svc.CreateDevice(ctx, other, "b", "smart_lock")
	require.NoError(t, err)

	mine, err := f.svc.List(ctx, owner())
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	admin := model.User{ID: 50, Role: model.RoleAdmin}
	all, err := f.svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
