package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/iot-device-console/internal/model"
)

// DeviceRepo persists device records. All state-changing operations
// that must invalidate outstanding device tokens bump token_version
// inside the same UPDATE statement, so the check-then-increment is a
// single atomic read-modify-write with respect to concurrent callers.
type DeviceRepo struct{ DB *sql.DB }

func NewDeviceRepo(db *sql.DB) *DeviceRepo { return &DeviceRepo{DB: db} }

const deviceColumns = "id, name, category, owner_id, status, secret_hash, token_version, created_at, updated_at, last_reading_at, deactivated_at"

func scanDevice(scan func(dest ...any) error) (model.Device, error) {
	var (
		d             model.Device
		lastReading   sql.NullTime
		deactivatedAt sql.NullTime
	)
	err := scan(&d.ID, &d.Name, &d.Category, &d.OwnerID, &d.Status, &d.SecretHash,
		&d.TokenVersion, &d.CreatedAt, &d.UpdatedAt, &lastReading, &deactivatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Device{}, ErrNotFound
	}
	if err != nil {
		return model.Device{}, err
	}
	if lastReading.Valid {
		t := lastReading.Time
		d.LastReadingAt = &t
	}
	if deactivatedAt.Valid {
		t := deactivatedAt.Time
		d.DeactivatedAt = &t
	}
	return d, nil
}

// Create inserts a new device row. ID, secret hash and category are
// decided by the service layer.
func (r *DeviceRepo) Create(ctx context.Context, d model.Device) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO devices (id, name, category, owner_id, status, secret_hash, token_version) VALUES (?,?,?,?,?,?,?)",
		d.ID, d.Name, d.Category, d.OwnerID, d.Status, d.SecretHash, d.TokenVersion)
	return err
}

// GetByID fetches a device by its opaque id.
func (r *DeviceRepo) GetByID(ctx context.Context, id string) (model.Device, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE id=? LIMIT 1", id)
	return scanDevice(row.Scan)
}

func (r *DeviceRepo) queryDevices(ctx context.Context, q string, args ...any) ([]model.Device, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []model.Device
	for rows.Next() {
		d, err := scanDevice(rows.Scan)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// ListByOwner returns the devices belonging to one user, newest first.
func (r *DeviceRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Device, error) {
	return r.queryDevices(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE owner_id=? ORDER BY created_at DESC, id DESC", ownerID)
}

// ListAll returns every device, newest first. Admin listings only.
func (r *DeviceRepo) ListAll(ctx context.Context) ([]model.Device, error) {
	return r.queryDevices(ctx,
		"SELECT "+deviceColumns+" FROM devices ORDER BY created_at DESC, id DESC")
}

// ListActive returns devices eligible for simulated telemetry.
func (r *DeviceRepo) ListActive(ctx context.Context) ([]model.Device, error) {
	return r.queryDevices(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE status='active' ORDER BY created_at")
}

// UpdateInfo rewrites name, category, status and the deactivation
// stamp. Token version is left alone; plain edits do not kick device
// sessions.
func (r *DeviceRepo) UpdateInfo(ctx context.Context, d model.Device) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE devices SET name=?, category=?, status=?, deactivated_at=? WHERE id=?",
		d.Name, d.Category, d.Status, d.DeactivatedAt, d.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RotateSecret stores a new secret hash, bumps the token version and
// reactivates the device in one statement.
func (r *DeviceRepo) RotateSecret(ctx context.Context, id, secretHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE devices SET secret_hash=?, token_version=token_version+1, status='active', deactivated_at=NULL, last_reading_at=NULL WHERE id=?",
		secretHash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate blocks the device, stamps the deactivation time and
// bumps the token version.
func (r *DeviceRepo) Deactivate(ctx context.Context, id string, when time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE devices SET status='blocked', deactivated_at=?, token_version=token_version+1 WHERE id=?",
		when, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// BumpTokenVersion invalidates all outstanding device tokens without
// touching the device status.
func (r *DeviceRepo) BumpTokenVersion(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE devices SET token_version=token_version+1 WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLastReading advances the device's last accepted reading stamp.
func (r *DeviceRepo) SetLastReading(ctx context.Context, id string, when time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE devices SET last_reading_at=? WHERE id=?", when, id)
	return err
}

// Delete removes the device; readings cascade at the database level.
func (r *DeviceRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM devices WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
