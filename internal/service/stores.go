package service

import (
	"context"
	"time"

	"github.com/iliyamo/iot-device-console/internal/model"
)

// The store interfaces below are the service layer's view of the
// persistent store. The SQL repositories implement them in
// production; tests substitute in-memory fakes. Implementations
// report repository.ErrNotFound / repository.ErrDuplicate for missing
// rows and unique-constraint violations.

// UserStore persists user accounts.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash string, role model.Role) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, u model.User) error
	Delete(ctx context.Context, id uint64) error
	HasAdmin(ctx context.Context) (bool, error)
}

// DeviceStore persists device records. Every mutation that must kick
// outstanding device tokens (RotateSecret, Deactivate,
// BumpTokenVersion) increments token_version atomically with the rest
// of the change.
type DeviceStore interface {
	Create(ctx context.Context, d model.Device) error
	GetByID(ctx context.Context, id string) (model.Device, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]model.Device, error)
	ListAll(ctx context.Context) ([]model.Device, error)
	ListActive(ctx context.Context) ([]model.Device, error)
	UpdateInfo(ctx context.Context, d model.Device) error
	RotateSecret(ctx context.Context, id, secretHash string) error
	Deactivate(ctx context.Context, id string, when time.Time) error
	BumpTokenVersion(ctx context.Context, id string) error
	SetLastReading(ctx context.Context, id string, when time.Time) error
	Delete(ctx context.Context, id string) error
}

// TokenStore is the refresh-token ledger. Revoke is an atomic
// compare-and-flip: it returns true only for the single caller that
// actually revoked the active entry.
type TokenStore interface {
	Store(ctx context.Context, userID uint64, jti, tokenHash string, expiresAt time.Time) error
	GetActive(ctx context.Context, userID uint64, jti string) (model.RefreshTokenRecord, error)
	Revoke(ctx context.Context, userID uint64, jti string) (bool, error)
}

// ReadingStore persists telemetry readings.
type ReadingStore interface {
	Insert(ctx context.Context, rd *model.Reading) error
	InsertBatch(ctx context.Context, rds []model.Reading) error
	Latest(ctx context.Context, deviceID string) (model.Reading, error)
	List(ctx context.Context, deviceID string, limit int, since, until *time.Time) ([]model.Reading, error)
}

// EventStore appends to and reads from the security event log.
type EventStore interface {
	Insert(ctx context.Context, ev *model.SecurityEvent) error
	ListRecent(ctx context.Context, limit int) ([]model.SecurityEvent, error)
}
