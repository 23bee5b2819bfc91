package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/iot-device-console/internal/model"
)

type ReadingRepo struct{ DB *sql.DB }

func NewReadingRepo(db *sql.DB) *ReadingRepo { return &ReadingRepo{DB: db} }

const readingColumns = "id, device_id, device_timestamp, received_at, payload, payload_size"

func scanReading(scan func(dest ...any) error) (model.Reading, error) {
	var (
		rd       model.Reading
		deviceTS sql.NullTime
		payload  []byte
	)
	err := scan(&rd.ID, &rd.DeviceID, &deviceTS, &rd.ReceivedAt, &payload, &rd.PayloadSize)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reading{}, ErrNotFound
	}
	if err != nil {
		return model.Reading{}, err
	}
	if deviceTS.Valid {
		t := deviceTS.Time
		rd.DeviceTimestamp = &t
	}
	rd.Payload = payload
	return rd, nil
}

// Insert stores one reading and fills in its generated ID.
func (r *ReadingRepo) Insert(ctx context.Context, rd *model.Reading) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO readings (device_id, device_timestamp, received_at, payload, payload_size) VALUES (?,?,?,?,?)",
		rd.DeviceID, rd.DeviceTimestamp, rd.ReceivedAt, []byte(rd.Payload), rd.PayloadSize)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rd.ID = uint64(id)
	return nil
}

// InsertBatch stores several readings in one statement. Used by the
// sample seeder; batches are small (a handful of rows).
func (r *ReadingRepo) InsertBatch(ctx context.Context, rds []model.Reading) error {
	if len(rds) == 0 {
		return nil
	}
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString("INSERT INTO readings (device_id, device_timestamp, received_at, payload, payload_size) VALUES ")
	for i, rd := range rds {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?,?,?,?,?)")
		args = append(args, rd.DeviceID, rd.DeviceTimestamp, rd.ReceivedAt, []byte(rd.Payload), rd.PayloadSize)
	}
	_, err := r.DB.ExecContext(ctx, sb.String(), args...)
	return err
}

// Latest returns the most recently received reading for a device, or
// ErrNotFound when the device has none.
func (r *ReadingRepo) Latest(ctx context.Context, deviceID string) (model.Reading, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+readingColumns+" FROM readings WHERE device_id=? ORDER BY received_at DESC, id DESC LIMIT 1",
		deviceID)
	return scanReading(row.Scan)
}

// List returns readings for a device, newest first, optionally
// bounded by a received_at window. limit <= 0 means no limit.
func (r *ReadingRepo) List(ctx context.Context, deviceID string, limit int, since, until *time.Time) ([]model.Reading, error) {
	q := "SELECT " + readingColumns + " FROM readings WHERE device_id=?"
	args := []any{deviceID}
	if since != nil {
		q += " AND received_at >= ?"
		args = append(args, *since)
	}
	if until != nil {
		q += " AND received_at <= ?"
		args = append(args, *until)
	}
	q += " ORDER BY received_at DESC, id DESC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []model.Reading
	for rows.Next() {
		rd, err := scanReading(rows.Scan)
		if err != nil {
			return nil, err
		}
		readings = append(readings, rd)
	}
	return readings, rows.Err()
}
