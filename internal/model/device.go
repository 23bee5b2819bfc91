package model

import "time"

// DeviceStatus is a closed enumeration of device lifecycle states.
// The values match the `status` enum column in the `devices` table.
type DeviceStatus string

const (
	DeviceActive  DeviceStatus = "active"
	DeviceBlocked DeviceStatus = "blocked"
	DeviceDeleted DeviceStatus = "deleted"
)

// Valid reports whether the status is one of the known values.
func (s DeviceStatus) Valid() bool {
	return s == DeviceActive || s == DeviceBlocked || s == DeviceDeleted
}

// Device represents an IoT device record as stored in the `devices`
// table. The device identifier is an opaque UUID string. A device
// authenticates with a one-time secret whose bcrypt hash is stored in
// SecretHash; the plain secret is never persisted.
//
// TokenVersion is a monotonic generation counter: every device access
// token embeds the version it was minted with, and a token is only
// honoured while its embedded version equals the current one. Bumping
// the counter therefore invalidates all previously issued device
// tokens without a revocation list.
type Device struct {
	ID            string       // devices.id (uuid)
	Name          string       // devices.name
	Category      string       // devices.category (profile slug)
	OwnerID       uint64       // devices.owner_id
	Status        DeviceStatus // devices.status
	SecretHash    string       // devices.secret_hash
	TokenVersion  int          // devices.token_version
	CreatedAt     time.Time    // devices.created_at
	UpdatedAt     time.Time    // devices.updated_at
	LastReadingAt *time.Time   // devices.last_reading_at (nullable)
	DeactivatedAt *time.Time   // devices.deactivated_at (nullable)
}
