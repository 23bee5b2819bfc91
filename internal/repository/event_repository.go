package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/iot-device-console/internal/model"
)

// EventRepo appends to and reads from the security_events audit
// table. Entries are never updated or deleted.
type EventRepo struct{ DB *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{DB: db} }

// Insert appends one event and fills in its generated ID and
// creation time.
func (r *EventRepo) Insert(ctx context.Context, ev *model.SecurityEvent) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO security_events (actor_type, actor_id, event_type, status, detail) VALUES (?,?,?,?,?)",
		ev.ActorType, ev.ActorID, ev.EventType, ev.Status, ev.Detail)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ev.ID = uint64(id)
	return r.DB.QueryRowContext(ctx,
		"SELECT created_at FROM security_events WHERE id=?", ev.ID).Scan(&ev.CreatedAt)
}

// ListRecent returns the newest events up to limit.
func (r *EventRepo) ListRecent(ctx context.Context, limit int) ([]model.SecurityEvent, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, created_at, actor_type, actor_id, event_type, status, detail FROM security_events ORDER BY created_at DESC, id DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.SecurityEvent
	for rows.Next() {
		var (
			ev      model.SecurityEvent
			actorID sql.NullString
			detail  sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.CreatedAt, &ev.ActorType, &actorID, &ev.EventType, &ev.Status, &detail); err != nil {
			return nil, err
		}
		if actorID.Valid {
			s := actorID.String
			ev.ActorID = &s
		}
		if detail.Valid {
			s := detail.String
			ev.Detail = &s
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
