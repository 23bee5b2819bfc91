package handler

import (
	"encoding/json"
	"time"

	"github.com/iliyamo/iot-device-console/internal/model"
)

// The view types below are the JSON shapes the API exposes. Models
// never cross the wire directly: password and secret hashes stay
// server-side and timestamps are rendered uniformly.

type userView struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func viewUser(u model.User) userView {
	return userView{ID: u.ID, Email: u.Email, Role: string(u.Role), CreatedAt: u.CreatedAt}
}

type deviceView struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Category      string     `json:"category"`
	OwnerID       uint64     `json:"owner_id"`
	Status        string     `json:"status"`
	TokenVersion  int        `json:"token_version"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastReadingAt *time.Time `json:"last_reading_at,omitempty"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

func viewDevice(d model.Device) deviceView {
	return deviceView{
		ID:            d.ID,
		Name:          d.Name,
		Category:      d.Category,
		OwnerID:       d.OwnerID,
		Status:        string(d.Status),
		TokenVersion:  d.TokenVersion,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		LastReadingAt: d.LastReadingAt,
		DeactivatedAt: d.DeactivatedAt,
	}
}

func viewDevices(devices []model.Device) []deviceView {
	out := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		out = append(out, viewDevice(d))
	}
	return out
}

type readingView struct {
	ID              uint64          `json:"id"`
	DeviceID        string          `json:"device_id"`
	DeviceTimestamp *time.Time      `json:"device_timestamp,omitempty"`
	ReceivedAt      time.Time       `json:"received_at"`
	Payload         json.RawMessage `json:"payload"`
	PayloadSize     int             `json:"payload_size"`
}

func viewReading(r model.Reading) readingView {
	return readingView{
		ID:              r.ID,
		DeviceID:        r.DeviceID,
		DeviceTimestamp: r.DeviceTimestamp,
		ReceivedAt:      r.ReceivedAt,
		Payload:         r.Payload,
		PayloadSize:     r.PayloadSize,
	}
}

func viewReadings(readings []model.Reading) []readingView {
	out := make([]readingView, 0, len(readings))
	for _, r := range readings {
		out = append(out, viewReading(r))
	}
	return out
}

type eventView struct {
	ID        uint64    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ActorType string    `json:"actor_type"`
	ActorID   *string   `json:"actor_id,omitempty"`
	EventType string    `json:"event_type"`
	Status    string    `json:"status"`
	Detail    *string   `json:"detail,omitempty"`
}

func viewEvent(ev model.SecurityEvent) eventView {
	return eventView{
		ID:        ev.ID,
		CreatedAt: ev.CreatedAt,
		ActorType: string(ev.ActorType),
		ActorID:   ev.ActorID,
		EventType: ev.EventType,
		Status:    string(ev.Status),
		Detail:    ev.Detail,
	}
}
